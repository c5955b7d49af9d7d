package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolioSwap/internal/config"
	"portfolioSwap/internal/events"
	"portfolioSwap/internal/metrics"
	"portfolioSwap/internal/scenario"
	"portfolioSwap/internal/storage"
	"portfolioSwap/internal/storage/postgres"
)

const flushBatchSize = 100

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

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	file, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := []*storage.SinkEmitter{}
	if cfg.EventsOut != "" {
		sinks = append(sinks, storage.NewSinkEmitter(storage.NewJsonlStorage(cfg.EventsOut), flushBatchSize, logger))
	}
	var pgStore *postgres.Store
	if cfg.PGDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		pgSink := storage.NewSinkEmitter(pgStore, flushBatchSize, logger)
		last, ok, err := pgStore.LoadState(ctx, cfg.Scenario)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if ok {
			pgSink.Resume(last)
			logger.Info("resuming event sequence", zap.Uint64("last_sequence", last))
		}
		sinks = append(sinks, pgSink)
	}

	emitters := events.Multi{metrics.Default()}
	for _, sink := range sinks {
		emitters = append(emitters, sink)
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Uint64("service_fee_bips", cfg.ServiceFeeBips),
		zap.Uint32("default_fee_tier", cfg.DefaultFeeTier),
		zap.Uint64("default_timeout", cfg.DefaultTimeout),
		zap.Uint64("lookback", cfg.Lookback),
		zap.Int("steps", len(file.Steps)),
		zap.String("events_out", cfg.EventsOut),
		zap.Bool("postgres", pgStore != nil),
	)

	runner := scenario.NewRunner(scenario.Params{
		ServiceFeeBips: cfg.ServiceFeeBips,
		DefaultFeeTier: cfg.DefaultFeeTier,
		DefaultTimeout: cfg.DefaultTimeout,
		Lookback:       cfg.Lookback,
		FeeTiers:       cfg.FeeTiers,
	}, emitters, logger)
	report, runErr := runner.Run(ctx, file)

	for _, sink := range sinks {
		if err := sink.Flush(); err != nil {
			logger.Error("flush events", zap.Error(err))
		}
	}
	if pgStore != nil && len(sinks) > 0 {
		last := sinks[len(sinks)-1]
		if err := pgStore.SaveState(ctx, cfg.Scenario, last.Sequence()); err != nil {
			logger.Warn("save state", zap.Error(err))
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("simulate complete", zap.Int("steps", len(report.Steps)), zap.Int("balances", len(report.Balances)))
	return nil
}
