package levels

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gridbot/internal/domain"
)

func TestWALStoreRoundTrip(t *testing.T) {
	pair := domain.Pair{Base: "ETH", Quote: "USDC"}
	store, err := NewWALStore(t.TempDir(), pair)
	require.NoError(t, err)
	defer store.Close()

	snap, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, snap, "fresh store holds no snapshot")

	first := domain.BookSnapshot{
		Pair: pair.String(),
		States: map[string]*domain.LevelState{
			"100": {Holding: domain.HoldingHeld, Position: decimal.NewFromInt(10), LastBuyTime: time.Unix(1700000000, 0).UTC()},
			"110": {Holding: domain.HoldingEmpty, Position: decimal.Zero, BuyOrderID: "buy-2"},
		},
	}
	require.NoError(t, store.Save(first))

	second := first
	second.States = map[string]*domain.LevelState{
		"100": {Holding: domain.HoldingEmpty, Position: decimal.Zero},
	}
	require.NoError(t, store.Save(second))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, pair.String(), got.Pair)
	require.Len(t, got.States, 1, "the latest snapshot wins")
	require.Equal(t, domain.HoldingEmpty, got.States["100"].Holding)
}

func TestWALStoreSurvivesReopen(t *testing.T) {
	pair := domain.Pair{Base: "BTC", Quote: "USDT"}
	dir := t.TempDir()

	store, err := NewWALStore(dir, pair)
	require.NoError(t, err)

	snap := domain.BookSnapshot{
		Pair: pair.String(),
		States: map[string]*domain.LevelState{
			"50000": {Holding: domain.HoldingHeld, Position: decimal.NewFromFloat(0.5), SellOrderID: "sell-1"},
		},
	}
	require.NoError(t, store.Save(snap))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir, pair)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "sell-1", got.States["50000"].SellOrderID)
	require.True(t, got.States["50000"].Position.Equal(decimal.NewFromFloat(0.5)))
}
