// Command chainguardian tracks a crypto portfolio: it values recorded orders
// with FIFO accounting against live prices and reports profit-take,
// sentiment and rebalance signals.
//
// Usage:
//
//	chainguardian --config config.yaml          refresh periodically
//	chainguardian --once                        refresh once and print
//	chainguardian --add-order --account main    record an order
//	chainguardian --export portfolio.json       dump the store as plain json
//
// Optional environment variables (also read from a .env file):
//
//	CHAINGUARDIAN_PASSPHRASE  derive the store key from a passphrase instead of a key file
//	ETH_RPC_URL               Ethereum JSON-RPC endpoint for tracked ETH addresses
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/chainguardian/config"
	"github.com/vadiminshakov/chainguardian/internal/accounting"
	"github.com/vadiminshakov/chainguardian/internal/clients"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/internal/events"
	"github.com/vadiminshakov/chainguardian/internal/ledger"
	"github.com/vadiminshakov/chainguardian/internal/refresh"
	"github.com/vadiminshakov/chainguardian/internal/report"
	"github.com/vadiminshakov/chainguardian/internal/services/history"
	"github.com/vadiminshakov/chainguardian/internal/services/pricer"
	"github.com/vadiminshakov/chainguardian/internal/services/sentiment"
	"github.com/vadiminshakov/chainguardian/internal/services/whales"
	"github.com/vadiminshakov/chainguardian/internal/setup"
	"github.com/vadiminshakov/chainguardian/internal/storage/snapshots"
	"github.com/vadiminshakov/chainguardian/internal/storage/vault"
	"github.com/vadiminshakov/chainguardian/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const broadcastBuffer = 16

func main() {
	// a missing .env file is fine, the variables may come from the environment
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("chainguardian stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Debug("configuration loaded", zap.Stringer("config", cfg))

	var opts []vault.Option
	if cfg.Passphrase != "" {
		opts = append(opts, vault.WithPassphrase(cfg.Passphrase))
	}
	if cfg.KeyFile != "" {
		opts = append(opts, vault.WithKeyFile(cfg.KeyFile))
	}
	v, err := vault.New(cfg.StorePath, opts...)
	if err != nil {
		return err
	}

	store, err := v.Load()
	switch {
	case err == nil:
	case errors.Is(err, vault.ErrDecrypt):
		logger.Error("store could not be decrypted, starting with an empty one", zap.Error(err))
	default:
		return err
	}

	if cfg.Export != "" {
		if err := vault.ExportPlain(store, cfg.Export); err != nil {
			return err
		}
		logger.Info("store exported", zap.String("path", cfg.Export))
		return nil
	}

	acc := store.Account(cfg.Account)
	quote := cfg.Quote(store.Settings)
	lg := ledger.New(acc.Orders)

	if cfg.AddOrder {
		return addOrder(v, store, acc, lg, quote)
	}

	oracle, err := pricer.New(pricer.Options{
		Source:         cfg.PriceSource,
		Quote:          quote,
		CoinGeckoIDs:   cfg.CoinGeckoIDs,
		CoinGeckoURL:   cfg.CoinGeckoURL,
		HyperliquidURL: cfg.HyperliquidURL,
		CacheTTL:       cfg.CacheTTL,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	var eth whales.EthBalancer
	if cfg.EthRPCURL != "" {
		client, err := clients.DialEthereum(ctx, cfg.EthRPCURL)
		if err != nil {
			logger.Warn("ethereum rpc unavailable, ETH addresses will not be tracked", zap.Error(err))
		} else {
			defer client.Close()
			eth = client
		}
	}
	tracker := whales.NewTracker(eth, nil, logger).WithLimiter(whales.NewBlockchairLimiter())
	if cfg.BlockchairURL != "" {
		tracker.WithBlockchairURL(cfg.BlockchairURL)
	}

	journal, err := snapshots.NewWALStore(cfg.WALDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Error("failed to close snapshot journal", zap.Error(err))
		}
	}()

	bus := events.NewBroadcaster(broadcastBuffer)
	refresher := refresh.New(
		logger,
		refresh.ParamsFor(acc, store.Settings, cfg.RebalanceTolPct),
		lg,
		accounting.NewEngine(cfg.Grouping, quote),
		pricer.Lookup(oracle, logger),
		refresh.WithSentiment(sentiment.NewClient(nil, cfg.SentimentURL, nil)),
		refresh.WithHistory(history.NewBinance(nil, quote, nil)),
		refresh.WithWhales(tracker),
		refresh.WithJournal(journal),
		refresh.WithBroadcaster(bus),
	)
	renderer := report.New()

	if cfg.Once {
		record, err := refresher.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Print(renderer.Render(record))
		return nil
	}

	interval := cfg.Interval(store.Settings)
	logger.Info("starting portfolio refresh loop",
		zap.String("account", acc.Name),
		zap.String("price_source", oracle.Name()),
		zap.Duration("interval", interval),
		zap.Int("orders", lg.Len()))

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx, interval)
	})
	if cfg.WebAddr != "" {
		server := web.NewServer(cfg.WebAddr, acc.Name, journal, refresher, logger)
		g.Go(func() error {
			return server.Start(gctx)
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case record := <-sub:
				fmt.Print(renderer.Render(record))
			}
		}
	})

	return g.Wait()
}

func addOrder(v *vault.Vault, store *domain.Store, acc *domain.Account, lg *ledger.Ledger, quote string) error {
	order, err := setup.RunAddOrder(acc.Name, quote)
	if errors.Is(err, setup.ErrCancelled) {
		fmt.Println(err)
		return nil
	}
	if err != nil {
		return err
	}

	stored, err := lg.Append(order)
	if err != nil {
		return err
	}
	acc.Orders = lg.Orders()

	if err := v.Save(store); err != nil {
		return errors.Wrap(err, "save store")
	}
	fmt.Println(setup.Success(stored))
	return nil
}
