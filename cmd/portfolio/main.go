package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "portfolio",
		Short:        "Portfolio purchase and liquidation engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a YAML scenario against an in-memory market",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario YAML path")
	simulateCmd.Flags().Uint64("service-fee-bips", 100, "service fee retained on purchase (bips)")
	simulateCmd.Flags().Uint32("default-fee-tier", 3000, "fee tier used when a step passes 0")
	simulateCmd.Flags().Uint64("default-timeout", 900, "timeout used when a step passes 0 (seconds)")
	simulateCmd.Flags().Uint64("lookback", 7200, "slippage estimator lookback window (seconds)")
	simulateCmd.Flags().StringSlice("fee-tiers", []string{"500", "3000", "10000"}, "fee tiers searched for anchor pools")
	simulateCmd.Flags().String("events-out", "./data/events.jsonl", "output events JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify-pools",
		Short: "Check that basket assets have anchor pools on a live V3 factory",
		RunE:  runVerifyPools,
	}

	verifyCmd.Flags().String("rpc", "", "RPC URL")
	verifyCmd.Flags().Float64("rpc-rate", 10, "maximum RPC requests per second (0 disables)")
	verifyCmd.Flags().String("factory", "", "Uniswap V3 factory address")
	verifyCmd.Flags().String("anchor", "", "anchor asset address")
	verifyCmd.Flags().String("wrapped-native", "", "wrapped native asset address, also checked")
	verifyCmd.Flags().StringSlice("asset", nil, "basket asset addresses (comma-separated)")
	verifyCmd.Flags().StringSlice("fee-tiers", []string{"500", "3000", "10000"}, "fee tiers to check")
	verifyCmd.Flags().String("out", "./data/pool_checks.jsonl", "output JSONL path")
	verifyCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	verifyCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(verifyCmd)

	selectorCmd := &cobra.Command{
		Use:   "selector <signature>...",
		Short: "Print the 4-byte selector of each function signature",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSelector,
	}

	root.AddCommand(selectorCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
