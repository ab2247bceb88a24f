package grid

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridbot/internal/domain"
	"gridbot/internal/gateway"
)

// SyncOrders brings the level book in line with the exchange: every level
// with a resting order id is checked against the venue and fills, partials
// and cancellations are applied. A failing level is logged and skipped so
// that it never blocks the others; the first error is returned so the
// scheduler can back off on transport trouble.
func (s *Strategy) SyncOrders(ctx context.Context) error {
	var firstErr error

	for i := range s.grid.Levels {
		level := &s.grid.Levels[i]
		st, err := s.book.Get(level.Price)
		if err != nil {
			return err
		}

		// a paired sell attached while settling the buy is synced on the
		// next pass, not in the same one
		hadBuy := st.BuyOrderID != ""
		hadSell := st.SellOrderID != ""

		if hadBuy {
			if err := s.syncBuy(ctx, level, st); err != nil {
				s.l.Error("buy order sync failed",
					zap.String("level", level.Price.String()),
					zap.String("order_id", st.BuyOrderID),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		if hadSell {
			if err := s.syncSell(ctx, level, st); err != nil {
				s.l.Error("sell order sync failed",
					zap.String("level", level.Price.String()),
					zap.String("order_id", st.SellOrderID),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	return firstErr
}

func (s *Strategy) syncBuy(ctx context.Context, level *domain.GridLevel, st *domain.LevelState) error {
	rec, err := s.gateway.FetchOrder(ctx, s.grid.Pair, st.BuyOrderID)
	if err != nil {
		if errors.Is(err, gateway.ErrOrderNotFound) {
			return s.recoverBuyFromTrades(ctx, level, st)
		}
		return err
	}

	switch rec.Status {
	case domain.OrderStatusFilled:
		return s.applyBuyFill(ctx, level, st, rec.Price, rec.Filled)

	case domain.OrderStatusPartiallyFilled:
		// the venue reports cumulative fill, only the increment is applied
		incremental := rec.Filled.Sub(st.Position)
		if !incremental.IsPositive() {
			return nil
		}
		if err := st.RecordBuyPartial(incremental); err != nil {
			s.l.Warn("skipped buy partial transition",
				zap.String("level", level.Price.String()),
				zap.Error(err))
			return nil
		}
		s.l.Info("buy order partially filled",
			zap.String("level", level.Price.String()),
			zap.String("increment", incremental.String()),
			zap.String("position", st.Position.String()))
		s.persist()
		return nil

	case domain.OrderStatusCancelled:
		if err := st.RecordBuyCancelled(); err != nil {
			s.l.Warn("skipped buy cancel transition",
				zap.String("level", level.Price.String()),
				zap.Error(err))
			return nil
		}
		s.l.Info("buy order cancelled by venue",
			zap.String("level", level.Price.String()))
		s.persist()
		return nil
	}

	return nil
}

// applyBuyFill settles a completed buy and immediately places the paired
// sell at fillPrice*(1+minProfit).
func (s *Strategy) applyBuyFill(ctx context.Context, level *domain.GridLevel, st *domain.LevelState, fillPrice, cumFilled decimal.Decimal) error {
	incremental := cumFilled.Sub(st.Position)
	if incremental.IsNegative() {
		incremental = decimal.Zero
	}
	if err := st.RecordBuyFilled(incremental, fillPrice, s.now()); err != nil {
		s.l.Warn("skipped buy fill transition",
			zap.String("level", level.Price.String()),
			zap.Error(err))
		return nil
	}
	s.l.Info("buy order filled",
		zap.String("level", level.Price.String()),
		zap.String("fill_price", fillPrice.String()),
		zap.String("position", st.Position.String()))
	s.persist()

	return s.placePairedSell(ctx, level, st, fillPrice)
}

// recoverBuyFromTrades handles a buy order the venue no longer knows about.
// A matching record in recent trade history means the order filled; no
// match means the fill, if any, is unrecoverable and the id is dropped.
func (s *Strategy) recoverBuyFromTrades(ctx context.Context, level *domain.GridLevel, st *domain.LevelState) error {
	trades, err := s.gateway.MyTrades(ctx, s.grid.Pair, s.tradeScanLimit)
	if err != nil {
		return errors.Wrap(err, "failed to scan trade history")
	}

	for _, t := range trades {
		if t.OrderID != st.BuyOrderID {
			continue
		}
		s.l.Info("lost buy order recovered from trade history",
			zap.String("level", level.Price.String()),
			zap.String("order_id", t.OrderID))
		return s.applyBuyFill(ctx, level, st, t.Price, t.Amount)
	}

	s.l.Warn("buy order vanished without a matching trade, treating as cancelled",
		zap.String("level", level.Price.String()),
		zap.String("order_id", st.BuyOrderID),
		zap.Int("trades_scanned", len(trades)))
	if err := st.RecordBuyCancelled(); err != nil {
		s.l.Warn("skipped buy cancel transition",
			zap.String("level", level.Price.String()),
			zap.Error(err))
		return nil
	}
	s.persist()
	return nil
}

func (s *Strategy) syncSell(ctx context.Context, level *domain.GridLevel, st *domain.LevelState) error {
	rec, err := s.gateway.FetchOrder(ctx, s.grid.Pair, st.SellOrderID)
	if err != nil {
		if errors.Is(err, gateway.ErrOrderNotFound) {
			return s.recoverSellFromTrades(ctx, level, st)
		}
		return err
	}

	switch rec.Status {
	case domain.OrderStatusFilled:
		s.applySellFill(level, st)
		return nil

	case domain.OrderStatusPartiallyFilled:
		incremental := rec.Filled.Sub(st.SellFilled)
		if !incremental.IsPositive() {
			return nil
		}
		if err := st.RecordSellPartial(incremental); err != nil {
			s.l.Warn("skipped sell partial transition",
				zap.String("level", level.Price.String()),
				zap.Error(err))
			return nil
		}
		s.l.Info("sell order partially filled",
			zap.String("level", level.Price.String()),
			zap.String("increment", incremental.String()),
			zap.String("position", st.Position.String()))
		s.persist()
		return nil

	case domain.OrderStatusCancelled:
		if err := st.RecordSellCancelled(); err != nil {
			s.l.Warn("skipped sell cancel transition",
				zap.String("level", level.Price.String()),
				zap.Error(err))
			return nil
		}
		s.l.Info("sell order cancelled by venue",
			zap.String("level", level.Price.String()))
		s.persist()
		return nil
	}

	return nil
}

func (s *Strategy) applySellFill(level *domain.GridLevel, st *domain.LevelState) {
	if err := st.RecordSellFilled(s.now()); err != nil {
		s.l.Warn("skipped sell fill transition",
			zap.String("level", level.Price.String()),
			zap.Error(err))
		return
	}
	s.l.Info("sell order filled, level back to empty",
		zap.String("level", level.Price.String()),
		zap.String("total_position", s.book.TotalPosition().String()))
	s.persist()
}

func (s *Strategy) recoverSellFromTrades(ctx context.Context, level *domain.GridLevel, st *domain.LevelState) error {
	trades, err := s.gateway.MyTrades(ctx, s.grid.Pair, s.tradeScanLimit)
	if err != nil {
		return errors.Wrap(err, "failed to scan trade history")
	}

	for _, t := range trades {
		if t.OrderID != st.SellOrderID {
			continue
		}
		s.l.Info("lost sell order recovered from trade history",
			zap.String("level", level.Price.String()),
			zap.String("order_id", t.OrderID))
		s.applySellFill(level, st)
		return nil
	}

	s.l.Warn("sell order vanished without a matching trade, treating as cancelled",
		zap.String("level", level.Price.String()),
		zap.String("order_id", st.SellOrderID),
		zap.Int("trades_scanned", len(trades)))
	if err := st.RecordSellCancelled(); err != nil {
		s.l.Warn("skipped sell cancel transition",
			zap.String("level", level.Price.String()),
			zap.Error(err))
		return nil
	}
	s.persist()
	return nil
}
