// Command gridbot runs a spot grid trading bot. It lays a ladder of price
// levels across a configured range, accumulates in the lower zone and
// distributes in the upper zone with post-only limit orders.
//
// Usage:
//
//	gridbot --config config.yaml
//	gridbot setup (interactive configuration wizard)
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gridbot/config"
	"gridbot/internal"
	"gridbot/internal/gateway"
	"gridbot/internal/logger"
	"gridbot/internal/reporter"
	"gridbot/internal/setup"
	"gridbot/pkg/retrier"
)

func main() {
	// credentials may live in a local .env, absence is fine
	_ = godotenv.Load()

	var settings *config.Settings
	var err error
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		settings, err = config.FromYaml("config.gen.yaml")
	} else {
		settings, err = config.Get()
	}
	if err != nil {
		log.Fatal(err)
	}

	l := logger.New(settings.Log)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	probe := retrier.New(retrier.WithMaxRetries(3))

	for _, conf := range settings.Pairs {
		gw, err := newGateway(conf.Platform)
		if err != nil {
			l.Fatal("failed to create exchange gateway",
				zap.String("platform", conf.Platform),
				zap.Error(err))
		}

		// wait out transient connectivity trouble before committing the pair
		if err := probe.Do(ctx, func(ctx context.Context) error {
			if _, err := gw.Instrument(ctx, conf.Pair); err != nil {
				return err
			}
			_, err := gw.Balance(ctx, conf.Pair.Quote)
			return err
		}); err != nil {
			l.Fatal("exchange unreachable",
				zap.String("platform", conf.Platform),
				zap.String("pair", conf.Pair.String()),
				zap.Error(err))
		}

		bot, err := internal.NewTradingBot(conf, gw, l)
		if err != nil {
			l.Fatal("failed to create trading bot",
				zap.String("pair", conf.Pair.String()),
				zap.Error(err))
		}
		defer bot.Close()

		reporter.PrintGridPlan(os.Stdout, bot.Grid())

		group.Go(func() error {
			return bot.Run(ctx)
		})
	}

	if err := group.Wait(); err != nil {
		l.Fatal("trading bot terminated", zap.Error(err))
	}
	l.Info("all pairs stopped")
}

func newGateway(platform string) (gateway.Gateway, error) {
	switch platform {
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		return gateway.NewBinanceGateway(apiKey, apiSecret), nil
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, errors.New("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		return gateway.NewBybitGateway(apiKey, apiSecret), nil
	default:
		return nil, errors.Errorf("unsupported platform %q", platform)
	}
}
