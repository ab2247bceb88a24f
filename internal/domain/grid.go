package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Zone splits the grid into the buy-focused lower third and the sell-focused
// remainder.
type Zone int

const (
	ZoneAccumulation Zone = iota
	ZoneDistribution
)

func (z Zone) String() string {
	if z == ZoneAccumulation {
		return "accumulation"
	}
	return "distribution"
}

// Tier is the sizing bucket of a level within the accumulation zone.
type Tier int

const (
	// TierAggressive covers the lowest quartile of the accumulation zone.
	TierAggressive Tier = iota
	// TierEnhanced covers the second quartile.
	TierEnhanced
	// TierBase covers the rest of the grid.
	TierBase
)

// QuantityScale returns the multiplier applied to the base buy quantity.
func (t Tier) QuantityScale() decimal.Decimal {
	switch t {
	case TierAggressive:
		return decimal.NewFromFloat(1.5)
	case TierEnhanced:
		return decimal.NewFromFloat(1.2)
	default:
		return decimal.NewFromInt(1)
	}
}

// GridLevel is a fixed price point of the grid. Levels are unique by price,
// which serves as their natural key.
type GridLevel struct {
	Price         decimal.Decimal
	Zone          Zone
	Tier          Tier
	TargetCapital decimal.Decimal
}

// Grid is the ordered, immutable set of levels for one trading session.
// Count and spacing are fixed once built.
type Grid struct {
	Pair            Pair
	Lower           decimal.Decimal
	Upper           decimal.Decimal
	Spacing         decimal.Decimal
	BuyPriceMax     decimal.Decimal
	PerLevelCapital decimal.Decimal
	Levels          []GridLevel
}

var (
	ratioQuarter     = decimal.NewFromFloat(0.25)
	ratioHalf        = decimal.NewFromFloat(0.5)
	ratioLowerThird  = decimal.NewFromFloat(0.33)
	ratioMiddleThird = decimal.NewFromFloat(0.66)

	sellRatioLow  = decimal.NewFromFloat(0.2)
	sellRatioMid  = decimal.NewFromFloat(0.4)
	sellRatioHigh = decimal.NewFromFloat(0.6)
)

// BuildGrid derives the level sequence from configuration. The range is
// split into count equal-width bands; the lowest count/3 bands form the
// accumulation zone and the remainder the distribution zone. Per-level
// capital is uniform; tiering scales order quantity, not capital.
func BuildGrid(pair Pair, lower, upper, investment decimal.Decimal, count int) (*Grid, error) {
	if count < 2 {
		return nil, errors.Errorf("grid count must be at least 2, got %d", count)
	}
	if !upper.GreaterThan(lower) {
		return nil, errors.Errorf("price range must be positive, got [%s, %s]", lower, upper)
	}
	if !investment.IsPositive() {
		return nil, errors.Errorf("total investment must be positive, got %s", investment)
	}

	countDec := decimal.NewFromInt(int64(count))
	spacing := upper.Sub(lower).Div(countDec)
	accumulationCount := count / 3
	buyPriceMax := lower.Add(spacing.Mul(decimal.NewFromInt(int64(accumulationCount))))
	perLevel := investment.Div(countDec)

	accumulationSpan := buyPriceMax.Sub(lower)
	aggressiveMax := lower.Add(accumulationSpan.Mul(ratioQuarter))
	enhancedMax := lower.Add(accumulationSpan.Mul(ratioHalf))

	// Div truncates, so the division remainder is attributed to the last
	// level to keep the capital sum exactly equal to the investment.
	lastCapital := investment.Sub(perLevel.Mul(decimal.NewFromInt(int64(count - 1))))

	levels := make([]GridLevel, 0, count)
	for i := 0; i < count; i++ {
		price := lower.Add(spacing.Mul(decimal.NewFromInt(int64(i))))

		zone := ZoneDistribution
		tier := TierBase
		if i < accumulationCount {
			zone = ZoneAccumulation
			switch {
			case price.LessThanOrEqual(aggressiveMax):
				tier = TierAggressive
			case price.LessThanOrEqual(enhancedMax):
				tier = TierEnhanced
			}
		}

		capital := perLevel
		if i == count-1 {
			capital = lastCapital
		}

		levels = append(levels, GridLevel{
			Price:         price,
			Zone:          zone,
			Tier:          tier,
			TargetCapital: capital,
		})
	}

	return &Grid{
		Pair:            pair,
		Lower:           lower,
		Upper:           upper,
		Spacing:         spacing,
		BuyPriceMax:     buyPriceMax,
		PerLevelCapital: perLevel,
		Levels:          levels,
	}, nil
}

// Bracket locates the level pair enclosing price. When price sits above the
// topmost level the topmost pair is returned; below the lowest level ok is
// false, which the engine treats as "wait for re-entry".
func (g *Grid) Bracket(price decimal.Decimal) (lower, upper *GridLevel, ok bool) {
	if price.LessThan(g.Levels[0].Price) {
		return nil, nil, false
	}
	last := len(g.Levels) - 1
	for i := 0; i < last; i++ {
		if g.Levels[i].Price.LessThanOrEqual(price) && price.LessThanOrEqual(g.Levels[i+1].Price) {
			return &g.Levels[i], &g.Levels[i+1], true
		}
	}
	return &g.Levels[last-1], &g.Levels[last], true
}

// BaseQuantity is the unscaled buy quantity at a level.
func (g *Grid) BaseQuantity(level *GridLevel) decimal.Decimal {
	return level.TargetCapital.Div(level.Price)
}

// SellRatio maps a price's position within the distribution zone to the
// share of aggregate holdings to realize: 20% in the lower third, 40% in
// the middle third, 60% in the top third.
func (g *Grid) SellRatio(price decimal.Decimal) decimal.Decimal {
	span := g.Upper.Sub(g.BuyPriceMax)
	if !span.IsPositive() {
		return sellRatioLow
	}
	pos := price.Sub(g.BuyPriceMax).Div(span)
	switch {
	case pos.LessThanOrEqual(ratioLowerThird):
		return sellRatioLow
	case pos.LessThanOrEqual(ratioMiddleThird):
		return sellRatioMid
	default:
		return sellRatioHigh
	}
}

// InAccumulationZone reports whether a level may originate buys.
func (g *Grid) InAccumulationZone(level *GridLevel) bool {
	return level.Zone == ZoneAccumulation
}
