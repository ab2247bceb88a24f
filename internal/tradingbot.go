package internal

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gridbot/config"
	"gridbot/internal/domain"
	"gridbot/internal/gateway"
	"gridbot/internal/reporter"
	"gridbot/internal/services/strategy/grid"
	"gridbot/internal/storage/levels"
)

const drainTimeout = 30 * time.Second

// GridStrategy is the per-pair trading logic driven by the bot loop.
type GridStrategy interface {
	Initialize(ctx context.Context) error
	SyncOrders(ctx context.Context) error
	Evaluate(ctx context.Context) error
	CancelAll(ctx context.Context) error
	Halted() bool
	Grid() *domain.Grid
	Book() domain.BookSnapshot
}

// TradingBot runs one pair's grid session: a fast reconciliation cadence
// and a slower decision cadence on a single goroutine, with doubled backoff
// after transport errors.
type TradingBot struct {
	conf      config.Config
	strategy  GridStrategy
	store     *levels.WALStore
	logger    *zap.Logger
	clock     Clock
	statusOut io.Writer
}

// NewTradingBot wires a strategy, its WAL-backed store and the grid layout
// from one pair configuration.
func NewTradingBot(conf config.Config, gw gateway.Gateway, logger *zap.Logger) (*TradingBot, error) {
	g, err := domain.BuildGrid(conf.Pair, conf.LowerPrice, conf.UpperPrice, conf.TotalInvestment, conf.GridCount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build grid")
	}

	store, err := levels.NewWALStore(conf.WalDir, conf.Pair)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open level store")
	}

	strategy, err := grid.NewStrategy(logger.With(zap.String("pair", conf.Pair.String())), g, gw, store, grid.Config{
		MinProfit:      conf.MinProfit,
		StopLoss:       conf.StopLoss,
		MakerFee:       conf.MakerFeeRate,
		TakerFee:       conf.TakerFeeRate,
		TradeScanLimit: conf.TradeScanLimit,
	})
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to create grid strategy")
	}

	return &TradingBot{
		conf:      conf,
		strategy:  strategy,
		store:     store,
		logger:    logger,
		clock:     SystemClock(),
		statusOut: os.Stdout,
	}, nil
}

// Grid exposes the level layout for reporting.
func (b *TradingBot) Grid() *domain.Grid {
	return b.strategy.Grid()
}

// Close releases the level store.
func (b *TradingBot) Close() {
	if b.store == nil {
		return
	}
	if err := b.store.Close(); err != nil {
		b.logger.Error("failed to close level store",
			zap.String("pair", b.conf.Pair.String()),
			zap.Error(err))
	}
}

// Run executes the trading loop until the context is cancelled or the stop
// loss halts the pair. On shutdown every resting order is drained.
func (b *TradingBot) Run(ctx context.Context) error {
	if err := b.strategy.Initialize(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize grid strategy")
	}

	b.logger.Info("starting grid loop",
		zap.String("pair", b.conf.Pair.String()),
		zap.Duration("check_interval", b.conf.CheckInterval),
		zap.Duration("price_check_interval", b.conf.PriceCheckInterval))

	delay := b.conf.CheckInterval
	var lastDecide time.Time

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutdown requested, draining open orders",
				zap.String("pair", b.conf.Pair.String()))
			b.drain()
			return nil
		case <-b.clock.After(delay):
		}

		degraded := false

		if err := b.strategy.SyncOrders(ctx); err != nil {
			b.logger.Error("reconciliation pass failed",
				zap.String("pair", b.conf.Pair.String()),
				zap.Error(err))
			degraded = gateway.IsTransport(err)
		}

		if now := b.clock.Now(); !degraded && now.Sub(lastDecide) >= b.conf.PriceCheckInterval {
			if err := b.strategy.Evaluate(ctx); err != nil {
				b.logger.Error("decision pass failed",
					zap.String("pair", b.conf.Pair.String()),
					zap.Error(err))
				degraded = gateway.IsTransport(err)
			} else {
				lastDecide = now
				if b.statusOut != nil {
					reporter.PrintSessionStatus(b.statusOut, b.strategy.Grid(), b.strategy.Book())
				}
			}
		}

		if b.strategy.Halted() {
			b.logger.Warn("pair halted by stop loss, exiting grid loop",
				zap.String("pair", b.conf.Pair.String()))
			return nil
		}

		if degraded {
			delay *= 2
			if delay > b.conf.ErrorCooldown {
				delay = b.conf.ErrorCooldown
			}
			b.logger.Warn("backing off after transport error",
				zap.String("pair", b.conf.Pair.String()),
				zap.Duration("delay", delay))
		} else {
			delay = b.conf.CheckInterval
		}
	}
}

// drain cancels outstanding orders with a fresh context, the loop context
// is already done at this point.
func (b *TradingBot) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := b.strategy.CancelAll(ctx); err != nil {
		b.logger.Error("failed to drain open orders",
			zap.String("pair", b.conf.Pair.String()),
			zap.Error(err))
	}
}
