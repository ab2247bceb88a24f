package grid

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridbot/internal/domain"
)

// proximityThreshold is how close price must come to a level, as a fraction
// of the level price, before a signal fires.
var proximityThreshold = decimal.NewFromFloat(0.01)

// Evaluate runs one decision pass: fetch the ticker, enforce the stop loss,
// bracket the price and emit at most one buy and one sell order.
func (s *Strategy) Evaluate(ctx context.Context) error {
	if s.halted {
		return nil
	}

	price, err := s.gateway.Ticker(ctx, s.grid.Pair)
	if err != nil {
		return errors.Wrap(err, "failed to fetch ticker")
	}

	if s.stopLossBreached(price) {
		s.l.Error("stop loss breached, halting pair and cancelling orders",
			zap.String("pair", s.grid.Pair.String()),
			zap.String("price", price.String()),
			zap.String("grid_lower", s.grid.Lower.String()))
		s.halted = true
		return s.CancelAll(ctx)
	}

	lower, upper, ok := s.grid.Bracket(price)
	if !ok {
		s.l.Debug("price below grid, waiting for re-entry",
			zap.String("pair", s.grid.Pair.String()),
			zap.String("price", price.String()))
		return nil
	}

	if err := s.maybeBuy(ctx, price, lower); err != nil {
		return err
	}
	return s.maybeSell(ctx, price, lower, upper)
}

func (s *Strategy) stopLossBreached(price decimal.Decimal) bool {
	if !s.stopLoss.IsPositive() {
		return false
	}
	guard := s.grid.Lower.Mul(one.Sub(s.stopLoss))
	return price.LessThan(guard)
}

// maybeBuy places a tier-scaled buy at the lower bracket level when price
// approaches it and the level is free.
func (s *Strategy) maybeBuy(ctx context.Context, price decimal.Decimal, level *domain.GridLevel) error {
	if !s.grid.InAccumulationZone(level) {
		return nil
	}
	if !nearLevel(price, level.Price) {
		return nil
	}

	st, err := s.book.Get(level.Price)
	if err != nil {
		return err
	}
	if st.Holding != domain.HoldingEmpty || st.BuyOrderID != "" || st.Position.IsPositive() {
		return nil
	}

	qty := s.grid.BaseQuantity(level).Mul(level.Tier.QuantityScale())

	// buys cross the spread, so the taker fee is part of the required cost
	required := qty.Mul(level.Price).Mul(one.Add(s.takerFee))
	free, err := s.gateway.Balance(ctx, s.grid.Pair.Quote)
	if err != nil {
		return errors.Wrap(err, "failed to fetch quote balance")
	}
	if free.LessThan(required) {
		s.l.Info("insufficient quote balance for buy, skipping level",
			zap.String("level", level.Price.String()),
			zap.String("required", required.String()),
			zap.String("free", free.String()))
		return nil
	}

	return s.placeBuy(ctx, level, st, qty, price)
}

// maybeSell places a ratio-sized sell at the upper bracket level when price
// approaches it and the lower level holds enough inventory.
func (s *Strategy) maybeSell(ctx context.Context, price decimal.Decimal, lower, upper *domain.GridLevel) error {
	if !nearLevel(price, upper.Price) {
		return nil
	}

	st, err := s.book.Get(lower.Price)
	if err != nil {
		return err
	}
	if st.Holding != domain.HoldingHeld || st.SellOrderID != "" {
		return nil
	}
	if st.Position.LessThan(s.grid.BaseQuantity(lower)) {
		return nil
	}

	// the level spread must clear the configured profit net of both fees
	spread := upper.Price.Sub(lower.Price).Div(lower.Price)
	if !spread.GreaterThan(s.minProfit.Add(s.makerFee).Add(s.takerFee)) {
		s.l.Debug("level spread below minimum profit, leaving level pending",
			zap.String("level", lower.Price.String()),
			zap.String("spread", spread.String()))
		return nil
	}

	qty := s.book.TotalPosition().Mul(s.grid.SellRatio(price))
	if qty.GreaterThan(st.Position) {
		qty = st.Position
	}
	if !qty.IsPositive() {
		return nil
	}

	return s.placeSell(ctx, lower, st, upper.Price, qty, price)
}

func nearLevel(price, level decimal.Decimal) bool {
	return price.Sub(level).Abs().Div(level).LessThan(proximityThreshold)
}
