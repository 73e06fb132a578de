package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolengine/internal/config"
	"poolengine/internal/event"
	"poolengine/internal/pool"
	"poolengine/internal/sim"
	"poolengine/internal/stats"
	"poolengine/internal/storage"
	"poolengine/internal/storage/postgres"
	"poolengine/internal/vault"
)

func main() {
	root := &cobra.Command{
		Use:          "poolengine",
		Short:        "Pooled-liquidity accounting engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario script against a fresh engine",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("script", "", "scenario script JSONL path")
	simulateCmd.Flags().String("out", "./data/pool_events.jsonl", "output events JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN for event persistence")
	simulateCmd.Flags().Uint64("min-locked-shares", 1000, "shares permanently locked at pool bootstrap")
	simulateCmd.Flags().Uint64("fee-bps", 30, "swap fee in basis points")
	simulateCmd.Flags().Uint64("flash-fee-bps", 5, "flash loan fee in basis points")
	simulateCmd.Flags().Uint64("max-flash-fraction-bps", 1000, "flash loan cap as basis points of reserve")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	persistCmd := &cobra.Command{
		Use:   "persist",
		Short: "Ship new events from the JSONL log to Postgres",
		RunE:  runPersist,
	}

	persistCmd.Flags().String("out", "./data/pool_events.jsonl", "events JSONL path to read")
	persistCmd.Flags().String("pg-dsn", "", "Postgres DSN for event persistence")
	persistCmd.Flags().String("checkpoint", "./data/persist.checkpoint", "checkpoint file path, empty disables")
	persistCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)
	root.AddCommand(persistCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buffer := event.NewMemory()
	collector := stats.NewCollector()
	sinks := event.Multi{buffer, collector}
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}

	v := vault.New()
	clock := sim.NewStepClock(1)
	registry, err := pool.NewRegistry(pool.RegistryConfig{
		Params: pool.Params{
			MinimumLockedShares:     cfg.MinLockedShares,
			FeeBps:                  cfg.FeeBps,
			FlashFeeBps:             cfg.FlashFeeBps,
			MaxFlashLoanFractionBps: cfg.MaxFlashFractionBps,
		},
		Vault:  v,
		Clock:  clock.Now,
		Sink:   sinks,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	runner := sim.NewRunner(registry, v, clock, logger)

	logger.Info("simulate start",
		zap.String("script", cfg.Script),
		zap.String("out", cfg.Out),
		zap.Uint64("fee_bps", cfg.FeeBps),
		zap.Uint64("flash_fee_bps", cfg.FlashFeeBps),
	)

	summary, err := runner.RunScript(ctx, cfg.Script)
	if err != nil {
		return err
	}

	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.PutEventBatch(ctx, buffer.Events()); err != nil {
			return fmt.Errorf("persist events: %w", err)
		}
	}

	for _, ps := range collector.Snapshot() {
		logger.Info("pair activity",
			zap.String("pair", ps.Pair),
			zap.Uint64("swaps", ps.Swaps),
			zap.Uint64("flash_loans", ps.FlashLoans),
			zap.Uint64("deposits", ps.Deposits),
			zap.Uint64("withdraws", ps.Withdraws),
			zap.String("volume_a", ps.VolumeA.Dec()),
			zap.String("volume_b", ps.VolumeB.Dec()),
			zap.String("fees_a", ps.FeesA.Dec()),
			zap.String("fees_b", ps.FeesB.Dec()),
			zap.String("reserve_a", ps.ReserveA),
			zap.String("reserve_b", ps.ReserveB),
		)
	}

	logger.Info("simulate done",
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed),
		zap.Int("events", len(buffer.Events())),
	)
	return nil
}

func runPersist(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PgDSN == "" {
		return fmt.Errorf("pg-dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkpoints := storage.NewCheckpointStore(cfg.Checkpoint, cfg.Checkpoint != "")
	cp, resumed, err := checkpoints.Load()
	if err != nil {
		return err
	}
	if resumed {
		logger.Info("resuming from checkpoint", zap.Uint64("line", cp.LastPersistedLine))
	}

	events, lastLine, err := storage.ReadEventsAfter(cfg.Out, cp.LastPersistedLine)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		logger.Info("no new events to persist")
		return nil
	}

	store, err := postgres.NewStore(ctx, cfg.PgDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.PutEventBatch(ctx, events); err != nil {
		return fmt.Errorf("persist events: %w", err)
	}
	if err := checkpoints.Save(lastLine); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	logger.Info("persist done",
		zap.Int("events", len(events)),
		zap.Uint64("through_line", lastLine),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
