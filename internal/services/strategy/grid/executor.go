package grid

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridbot/internal/domain"
	"gridbot/internal/gateway"
)

// nudgeThreshold is the minimum distance between an order price and the
// live ticker. A post-only order priced inside this band would cross the
// book and be rejected, so the price is nudged away from the ticker.
var nudgeThreshold = decimal.NewFromFloat(0.001)

func protectedPrice(target, ticker decimal.Decimal, side domain.Side) decimal.Decimal {
	if !ticker.IsPositive() {
		return target
	}
	gap := target.Sub(ticker).Abs().Div(ticker)
	if gap.GreaterThanOrEqual(nudgeThreshold) {
		return target
	}
	offset := ticker.Mul(nudgeThreshold)
	if side == domain.SideBuy {
		return ticker.Sub(offset)
	}
	return ticker.Add(offset)
}

func (s *Strategy) placeBuy(ctx context.Context, level *domain.GridLevel, st *domain.LevelState, qty, ticker decimal.Decimal) error {
	price := protectedPrice(level.Price, ticker, domain.SideBuy).RoundFloor(s.instrument.PricePrecision)
	qty = qty.RoundFloor(s.instrument.QuantityPrecision)
	if !qty.IsPositive() {
		s.l.Warn("buy quantity rounds to zero, skipping level",
			zap.String("level", level.Price.String()))
		return nil
	}

	id, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Pair:          s.grid.Pair,
		Side:          domain.SideBuy,
		Price:         price,
		Quantity:      qty,
		ClientOrderID: uuid.New().String(),
	})
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrInsufficientFunds):
			s.l.Warn("buy rejected for insufficient funds",
				zap.String("level", level.Price.String()),
				zap.Error(err))
			return nil
		case errors.Is(err, gateway.ErrPriceViolation):
			s.l.Warn("buy rejected for price violation",
				zap.String("level", level.Price.String()),
				zap.String("price", price.String()),
				zap.Error(err))
			return nil
		}
		return errors.Wrap(err, "failed to place buy order")
	}

	if err := st.AttachBuyOrder(id, s.now()); err != nil {
		s.l.Warn("skipped buy attach transition",
			zap.String("level", level.Price.String()),
			zap.String("order_id", id),
			zap.Error(err))
		return nil
	}

	s.l.Info("buy order placed",
		zap.String("level", level.Price.String()),
		zap.String("price", price.String()),
		zap.String("quantity", qty.String()),
		zap.String("order_id", id))
	s.persist()
	return nil
}

func (s *Strategy) placeSell(ctx context.Context, level *domain.GridLevel, st *domain.LevelState, target, qty, ticker decimal.Decimal) error {
	price := protectedPrice(target, ticker, domain.SideSell).RoundFloor(s.instrument.PricePrecision)
	qty = qty.RoundFloor(s.instrument.QuantityPrecision)
	if !qty.IsPositive() {
		s.l.Warn("sell quantity rounds to zero, skipping level",
			zap.String("level", level.Price.String()))
		return nil
	}

	id, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Pair:          s.grid.Pair,
		Side:          domain.SideSell,
		Price:         price,
		Quantity:      qty,
		ClientOrderID: uuid.New().String(),
	})
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrInsufficientFunds):
			s.l.Warn("sell rejected for insufficient funds",
				zap.String("level", level.Price.String()),
				zap.Error(err))
			return nil
		case errors.Is(err, gateway.ErrPriceViolation):
			s.l.Warn("sell rejected for price violation",
				zap.String("level", level.Price.String()),
				zap.String("price", price.String()),
				zap.Error(err))
			return nil
		}
		return errors.Wrap(err, "failed to place sell order")
	}

	if err := st.AttachSellOrder(id, s.now()); err != nil {
		s.l.Warn("skipped sell attach transition",
			zap.String("level", level.Price.String()),
			zap.String("order_id", id),
			zap.Error(err))
		return nil
	}

	s.l.Info("sell order placed",
		zap.String("level", level.Price.String()),
		zap.String("price", price.String()),
		zap.String("quantity", qty.String()),
		zap.String("order_id", id))
	s.persist()
	return nil
}

// placePairedSell parks the exit for a fresh buy fill at
// fillPrice*(1+minProfit). A placement failure is not fatal, the decision
// pass will place a sell for the holding level on a later cycle.
func (s *Strategy) placePairedSell(ctx context.Context, level *domain.GridLevel, st *domain.LevelState, fillPrice decimal.Decimal) error {
	target := fillPrice.Mul(one.Add(s.minProfit))

	ticker, err := s.gateway.Ticker(ctx, s.grid.Pair)
	if err != nil {
		s.l.Warn("paired sell deferred, ticker unavailable",
			zap.String("level", level.Price.String()),
			zap.Error(err))
		return nil
	}

	return s.placeSell(ctx, level, st, target, st.Position, ticker)
}
