package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testPair() Pair {
	return Pair{Base: "ETH", Quote: "USDC"}
}

func TestBuildGridProperties(t *testing.T) {
	cases := []struct {
		name       string
		lower      int64
		upper      int64
		count      int
		investment int64
	}{
		{"three levels", 100, 130, 3, 3000},
		{"ten levels", 2000, 3000, 10, 5000},
		{"two levels", 50, 60, 2, 100},
		{"uneven range", 137, 411, 7, 999},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := BuildGrid(testPair(),
				decimal.NewFromInt(tc.lower), decimal.NewFromInt(tc.upper),
				decimal.NewFromInt(tc.investment), tc.count)
			require.NoError(t, err)

			require.Len(t, g.Levels, tc.count, "level count should match grid count")

			for i := 1; i < len(g.Levels); i++ {
				require.True(t, g.Levels[i].Price.GreaterThan(g.Levels[i-1].Price),
					"levels should be strictly increasing")
			}

			totalCapital := decimal.Zero
			for _, level := range g.Levels {
				totalCapital = totalCapital.Add(level.TargetCapital)
			}
			require.True(t, totalCapital.Equal(decimal.NewFromInt(tc.investment)),
				"per-level capital should sum to total investment, got %s", totalCapital)

			accumulation := 0
			for _, level := range g.Levels {
				if level.Zone == ZoneAccumulation {
					accumulation++
				}
			}
			require.Equal(t, tc.count/3, accumulation, "lowest third of levels should accumulate")
		})
	}
}

func TestBuildGridAssignsDivisionRemainderToLastLevel(t *testing.T) {
	// 999/7 does not terminate, the truncated share goes to every level but
	// the last, which absorbs the remainder
	g, err := BuildGrid(testPair(),
		decimal.NewFromInt(137), decimal.NewFromInt(411),
		decimal.NewFromInt(999), 7)
	require.NoError(t, err)

	for i := 0; i < len(g.Levels)-1; i++ {
		require.True(t, g.Levels[i].TargetCapital.Equal(g.PerLevelCapital))
	}

	last := g.Levels[len(g.Levels)-1].TargetCapital
	want := decimal.NewFromInt(999).Sub(g.PerLevelCapital.Mul(decimal.NewFromInt(6)))
	require.True(t, last.Equal(want), "last level capital, got %s", last)
}

func TestBuildGridRejectsBadInput(t *testing.T) {
	pair := testPair()
	hundred := decimal.NewFromInt(100)
	twoHundred := decimal.NewFromInt(200)

	_, err := BuildGrid(pair, hundred, twoHundred, hundred, 1)
	require.Error(t, err, "grid count below 2 should fail")

	_, err = BuildGrid(pair, twoHundred, hundred, hundred, 5)
	require.Error(t, err, "inverted range should fail")

	_, err = BuildGrid(pair, hundred, twoHundred, decimal.Zero, 5)
	require.Error(t, err, "zero investment should fail")
}

func TestBuildGridTiers(t *testing.T) {
	// 12 levels over [400, 1600): accumulation zone is the lowest 4,
	// spanning [400, 800). Aggressive tier ends at 500, enhanced at 600.
	g, err := BuildGrid(testPair(),
		decimal.NewFromInt(400), decimal.NewFromInt(1600),
		decimal.NewFromInt(1200), 12)
	require.NoError(t, err)

	require.Equal(t, TierAggressive, g.Levels[0].Tier)
	require.Equal(t, TierAggressive, g.Levels[1].Tier)
	require.Equal(t, TierEnhanced, g.Levels[2].Tier)
	require.Equal(t, TierBase, g.Levels[3].Tier)
	require.Equal(t, TierBase, g.Levels[5].Tier)

	require.True(t, TierAggressive.QuantityScale().Equal(decimal.NewFromFloat(1.5)))
	require.True(t, TierEnhanced.QuantityScale().Equal(decimal.NewFromFloat(1.2)))
	require.True(t, TierBase.QuantityScale().Equal(decimal.NewFromInt(1)))
}

func TestBracket(t *testing.T) {
	g, err := BuildGrid(testPair(),
		decimal.NewFromInt(100), decimal.NewFromInt(130),
		decimal.NewFromInt(3000), 3)
	require.NoError(t, err)

	t.Run("inside range", func(t *testing.T) {
		lower, upper, ok := g.Bracket(decimal.NewFromFloat(105.5))
		require.True(t, ok)
		require.True(t, lower.Price.Equal(decimal.NewFromInt(100)))
		require.True(t, upper.Price.Equal(decimal.NewFromInt(110)))
	})

	t.Run("on a level", func(t *testing.T) {
		lower, upper, ok := g.Bracket(decimal.NewFromInt(110))
		require.True(t, ok)
		require.True(t, lower.Price.Equal(decimal.NewFromInt(100)))
		require.True(t, upper.Price.Equal(decimal.NewFromInt(110)))
	})

	t.Run("above topmost level uses topmost pair", func(t *testing.T) {
		lower, upper, ok := g.Bracket(decimal.NewFromInt(500))
		require.True(t, ok)
		require.True(t, lower.Price.Equal(decimal.NewFromInt(110)))
		require.True(t, upper.Price.Equal(decimal.NewFromInt(120)))
	})

	t.Run("below lowest level waits", func(t *testing.T) {
		_, _, ok := g.Bracket(decimal.NewFromInt(99))
		require.False(t, ok)
	})
}

func TestSellRatioThirds(t *testing.T) {
	// distribution zone spans [110, 130)
	g, err := BuildGrid(testPair(),
		decimal.NewFromInt(100), decimal.NewFromInt(130),
		decimal.NewFromInt(3000), 3)
	require.NoError(t, err)

	require.True(t, g.SellRatio(decimal.NewFromInt(112)).Equal(decimal.NewFromFloat(0.2)))
	require.True(t, g.SellRatio(decimal.NewFromInt(120)).Equal(decimal.NewFromFloat(0.4)))
	require.True(t, g.SellRatio(decimal.NewFromInt(129)).Equal(decimal.NewFromFloat(0.6)))
}

func TestBaseQuantity(t *testing.T) {
	g, err := BuildGrid(testPair(),
		decimal.NewFromInt(100), decimal.NewFromInt(130),
		decimal.NewFromInt(3000), 3)
	require.NoError(t, err)

	// 1000 per level at price 100
	require.True(t, g.BaseQuantity(&g.Levels[0]).Equal(decimal.NewFromInt(10)))
}
