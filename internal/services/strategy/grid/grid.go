// Package grid implements the grid trading strategy (order reconciliation in
// reconciler.go, signal evaluation in engine.go, order placement in
// executor.go).
package grid

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridbot/internal/domain"
	"gridbot/internal/gateway"
)

const defaultTradeScanLimit = 50

var one = decimal.NewFromInt(1)

// store persists level book snapshots between restarts.
type store interface {
	Save(snap domain.BookSnapshot) error
	Load() (*domain.BookSnapshot, error)
}

// Config carries the strategy thresholds.
type Config struct {
	// MinProfit is the minimum profit fraction a sell must clear net of fees.
	MinProfit decimal.Decimal
	// StopLoss halts the pair when price falls below Lower*(1-StopLoss).
	// Zero disables the guard.
	StopLoss decimal.Decimal
	MakerFee decimal.Decimal
	TakerFee decimal.Decimal
	// TradeScanLimit bounds the trade-history scan used to recover lost orders.
	TradeScanLimit int
}

// Strategy owns one pair's grid session: the immutable level layout, the
// level book and every decision about placing, tracking and cancelling
// orders. It is driven by a single scheduler goroutine.
type Strategy struct {
	l              *zap.Logger
	grid           *domain.Grid
	book           *domain.LevelBook
	gateway        gateway.Gateway
	store          store
	minProfit      decimal.Decimal
	stopLoss       decimal.Decimal
	makerFee       decimal.Decimal
	takerFee       decimal.Decimal
	tradeScanLimit int
	instrument     domain.Instrument
	halted         bool

	// current time source (can be overridden for testing)
	now func() time.Time
}

// NewStrategy returns a configured grid strategy for one pair.
func NewStrategy(l *zap.Logger, g *domain.Grid, gw gateway.Gateway, st store, cfg Config) (*Strategy, error) {
	if cfg.MinProfit.IsNegative() {
		return nil, errors.Errorf("minProfit must not be negative, got %s", cfg.MinProfit)
	}
	if cfg.StopLoss.IsNegative() || cfg.StopLoss.GreaterThanOrEqual(one) {
		return nil, errors.Errorf("stopLoss must be in [0, 1), got %s", cfg.StopLoss)
	}
	if cfg.TradeScanLimit <= 0 {
		cfg.TradeScanLimit = defaultTradeScanLimit
	}

	return &Strategy{
		l:              l,
		grid:           g,
		book:           domain.NewLevelBook(g),
		gateway:        gw,
		store:          st,
		minProfit:      cfg.MinProfit,
		stopLoss:       cfg.StopLoss,
		makerFee:       cfg.MakerFee,
		takerFee:       cfg.TakerFee,
		tradeScanLimit: cfg.TradeScanLimit,
		instrument:     domain.Instrument{PricePrecision: 2, QuantityPrecision: 4},
		now:            time.Now,
	}, nil
}

// Initialize fetches instrument precision and recovers the level book from
// the last persisted snapshot. Stale order ids in the snapshot are resolved
// by the first reconciliation pass.
func (s *Strategy) Initialize(ctx context.Context) error {
	inst, err := s.gateway.Instrument(ctx, s.grid.Pair)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch instrument for %s", s.grid.Pair)
	}
	s.instrument = inst

	if s.store == nil {
		return nil
	}

	snap, err := s.store.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load level book snapshot")
	}
	if snap == nil {
		s.l.Info("no persisted level book, starting from empty state",
			zap.String("pair", s.grid.Pair.String()))
		return nil
	}

	restored := s.book.Restore(*snap)
	s.l.Info("level book recovered",
		zap.String("pair", s.grid.Pair.String()),
		zap.Int("levels_restored", restored),
		zap.String("total_position", s.book.TotalPosition().String()))
	return nil
}

// Pair returns the traded pair.
func (s *Strategy) Pair() domain.Pair {
	return s.grid.Pair
}

// Grid returns the immutable level layout.
func (s *Strategy) Grid() *domain.Grid {
	return s.grid
}

// Book exports the current level book view for reporting.
func (s *Strategy) Book() domain.BookSnapshot {
	return s.book.Snapshot()
}

// Halted reports whether the stop loss fired for this pair.
func (s *Strategy) Halted() bool {
	return s.halted
}

// CancelAll cancels every resting order across levels. Per-order failures
// are logged and do not block the remaining cancellations.
func (s *Strategy) CancelAll(ctx context.Context) error {
	for i := range s.grid.Levels {
		level := &s.grid.Levels[i]
		st, err := s.book.Get(level.Price)
		if err != nil {
			return err
		}

		if st.BuyOrderID != "" {
			if err := s.gateway.CancelOrder(ctx, s.grid.Pair, st.BuyOrderID); err != nil {
				s.l.Error("failed to cancel buy order",
					zap.String("order_id", st.BuyOrderID),
					zap.String("level", level.Price.String()),
					zap.Error(err))
			} else if err := st.RecordBuyCancelled(); err != nil {
				s.l.Warn("skipped buy cancel transition", zap.Error(err))
			}
		}

		if st.SellOrderID != "" {
			if err := s.gateway.CancelOrder(ctx, s.grid.Pair, st.SellOrderID); err != nil {
				s.l.Error("failed to cancel sell order",
					zap.String("order_id", st.SellOrderID),
					zap.String("level", level.Price.String()),
					zap.Error(err))
			} else if err := st.RecordSellCancelled(); err != nil {
				s.l.Warn("skipped sell cancel transition", zap.Error(err))
			}
		}
	}

	s.persist()
	return nil
}

// persist saves the current book snapshot. Persistence failures are logged
// and never interrupt trading, the exchange remains the source of truth.
func (s *Strategy) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.book.Snapshot()); err != nil {
		s.l.Error("failed to persist level book",
			zap.String("pair", s.grid.Pair.String()),
			zap.Error(err))
	}
}
