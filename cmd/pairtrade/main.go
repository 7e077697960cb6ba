package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/config"
	"github.com/helios-quant/pairtrade/internal/executor"
	"github.com/helios-quant/pairtrade/internal/ingest"
	"github.com/helios-quant/pairtrade/internal/lock"
	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/orchestrator"
	"github.com/helios-quant/pairtrade/internal/repository"
	"github.com/helios-quant/pairtrade/internal/signal"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/internal/venue"
)

// app bundles the wired pipeline components for one CLI invocation.
type app struct {
	config config.Config
	log    *logger.Logger
	store  *repository.Store
	client venue.Client
	lease  *lock.Lease
}

func newApp(cmd *cli.Command) (*app, error) {
	newLogger := logger.NewLogger
	if cmd.Bool("verbose") {
		newLogger = logger.NewDebugLogger
	}

	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	store, err := repository.NewStore(cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(); err != nil {
		return nil, err
	}

	client := venue.NewRESTClient(venue.RESTConfig{
		Host:       cfg.Venue.Host,
		APIKey:     cfg.Venue.APIKey,
		Passphrase: cfg.Venue.Passphrase,
		Timeout:    cfg.Venue.Timeout.Std(),
	}, log)

	var lease *lock.Lease
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lease = lock.NewLease(rdb, "pairtrade:cycle", cfg.Redis.LeaseTTL.Std())
	}

	return &app{
		config: cfg,
		log:    log,
		store:  store,
		client: client,
		lease:  lease,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("failed to close store", zap.Error(err))
	}

	_ = a.log.Sync()
}

// withLease runs fn under the cycle lease when redis is configured.
func (a *app) withLease(ctx context.Context, fn func(context.Context) error) error {
	token, err := a.lease.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := a.lease.Release(ctx, token); err != nil {
			a.log.Error("failed to release cycle lease", zap.Error(err))
		}
	}()

	return fn(ctx)
}

func (a *app) executionConfig() executor.Config {
	cfg := executor.Config{
		LimitFee:       a.config.Execution.LimitFee,
		OrderExpiry:    a.config.Execution.OrderExpiry.Std(),
		PollInterval:   a.config.Execution.PollInterval.Std(),
		PendingTimeout: a.config.Execution.PendingTimeout.Std(),
		SettleDelay:    a.config.Execution.SettleDelay.Std(),
	}

	if a.config.Execution.NotionalUSD > 0 {
		cfg.NotionalUSD = decimal.NewFromFloat(a.config.Execution.NotionalUSD)
	}

	return cfg
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML config file",
		Value:   "pairtrade.yaml",
	}
}

func syncInstrumentsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	syncer := ingest.NewSyncer(a.client, a.store, a.log)

	created, err := syncer.SyncInstruments(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("tracking %d new instruments\n", len(created))

	return nil
}

func syncCandlesAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return a.withLease(ctx, func(ctx context.Context) error {
		syncer := ingest.NewSyncer(a.client, a.store, a.log)

		counts, err := syncer.SyncCandles(ctx)
		if err != nil {
			return err
		}

		for symbol, count := range counts {
			fmt.Printf("%s: %d new candles\n", symbol, count)
		}

		return nil
	})
}

func backfillAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	symbol := cmd.String("instrument")

	instrument, err := a.store.GetInstrument(ctx, symbol)
	if err != nil {
		return err
	}

	backfiller := ingest.NewBackfiller(ingest.NewBinanceSource(), a.store, a.log).WithProgress()

	inserted, err := backfiller.Backfill(ctx, instrument,
		cmd.String("binance-symbol"), cmd.Timestamp("start"), cmd.Timestamp("end"))
	if err != nil {
		return err
	}

	fmt.Printf("backfilled %d candles for %s\n", inserted, symbol)

	return nil
}

func tradeAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return a.withLease(ctx, func(ctx context.Context) error {
		evaluator := signal.NewEvaluator(a.store, a.store, a.log)
		exec := executor.NewExecutor(a.client, a.store, a.executionConfig(), a.log)

		orch := orchestrator.New(a.store, evaluator, exec, a.log).
			WithBase(a.config.BaseSymbol)

		return orch.RunTrades(ctx)
	})
}

func enableInstrumentAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	symbol := cmd.Args().First()
	if symbol == "" {
		return cli.Exit("instrument symbol argument is required", 1)
	}

	enabled := !cmd.Bool("disable")

	if err := a.store.SetInstrumentTradingEnabled(ctx, symbol, enabled); err != nil {
		return err
	}

	fmt.Printf("%s trading enabled: %v\n", symbol, enabled)

	return nil
}

func setTradingAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	enabled := !cmd.Bool("disable")

	if err := a.store.SetEnableTrades(ctx, enabled); err != nil {
		return err
	}

	fmt.Printf("trading enabled: %v\n", enabled)

	return nil
}

func historyAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.store.ListSyncHistory(ctx, types.SyncType(cmd.String("type")))
	if err != nil {
		return err
	}

	for _, record := range records {
		fmt.Printf("%s %s synced=%d %s\n",
			record.Date.Format(time.RFC3339), record.SyncType, record.RecordsSynced, record.ExtraData)
	}

	return nil
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	cfg := config.DefaultConfig()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "pairtrade",
		Usage: "Pairs-trading pipeline against a perpetual-futures venue",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync-instruments",
				Usage:  "Track venue markets as instruments",
				Flags:  []cli.Flag{configFlag()},
				Action: syncInstrumentsAction,
			},
			{
				Name:   "sync-candles",
				Usage:  "Pull daily candles for tracked instruments",
				Flags:  []cli.Flag{configFlag()},
				Action: syncCandlesAction,
			},
			{
				Name:  "backfill",
				Usage: "Seed historical candles from Binance klines",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "instrument",
						Aliases:  []string{"i"},
						Usage:    "Tracked instrument symbol",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "binance-symbol",
						Usage:    "Binance spot symbol, e.g. DOGEUSDT",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "start",
						Aliases:  []string{"s"},
						Usage:    "Start date in `YYYY-MM-DD` format",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.TimestampFlag{
						Name:    "end",
						Aliases: []string{"e"},
						Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
						Value:   time.Now().UTC(),
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
				},
				Action: backfillAction,
			},
			{
				Name:   "trade",
				Usage:  "Run one trade cycle: evaluate pairs and open positions",
				Flags:  []cli.Flag{configFlag()},
				Action: tradeAction,
			},
			{
				Name:      "enable-instrument",
				Usage:     "Enable (or disable) trading for one instrument",
				ArgsUsage: "SYMBOL",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "disable", Usage: "Disable instead of enable"},
				},
				Action: enableInstrumentAction,
			},
			{
				Name:  "set-trading",
				Usage: "Enable (or disable) the global trading switch",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "disable", Usage: "Disable instead of enable"},
				},
				Action: setTradingAction,
			},
			{
				Name:  "history",
				Usage: "Print sync audit records",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "type",
						Usage: "Sync type: prices, trades or candles",
						Value: string(types.SyncTypeCandles),
					},
				},
				Action: historyAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the config file",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
