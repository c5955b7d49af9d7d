package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolioSwap/internal/chain"
	"portfolioSwap/internal/config"
	"portfolioSwap/internal/dex"
	"portfolioSwap/internal/model"
)

func runVerifyPools(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadVerify(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	factory, err := config.ParseAddress("factory", cfg.Factory)
	if err != nil {
		return err
	}
	anchor, err := config.ParseAddress("anchor", cfg.Anchor)
	if err != nil {
		return err
	}
	assets, err := config.ParseAddresses(cfg.Assets)
	if err != nil {
		return err
	}
	if cfg.WrappedNative != "" {
		wrapped, err := config.ParseAddress("wrapped-native", cfg.WrappedNative)
		if err != nil {
			return err
		}
		assets = append(assets, wrapped)
	}
	if len(assets) == 0 {
		return fmt.Errorf("asset list is required")
	}
	if len(cfg.FeeTiers) == 0 {
		return fmt.Errorf("fee tier list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCRate)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var chainID string
	if err := chain.WithRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
		id, err := chainClient.GetChainID(ctx)
		if err != nil {
			return err
		}
		chainID = id.String()
		return nil
	}); err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	out, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer out.Close()

	logger.Info("verify start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", chainID),
		zap.String("factory", factory.Hex()),
		zap.String("anchor", anchor.Hex()),
		zap.Int("assets", len(assets)),
		zap.Any("fee_tiers", cfg.FeeTiers),
		zap.String("out", cfg.Out),
	)

	lookup := dex.NewFactoryLookup(chainClient, factory)
	metaCache := dex.NewAssetMetaCache()

	var missing int
	for _, asset := range assets {
		meta := metaCache.Lookup(ctx, chainClient, asset, logger)
		found := asset == anchor
		for _, fee := range cfg.FeeTiers {
			if asset == anchor {
				break
			}
			check := model.PoolCheck{
				Asset:    asset.Hex(),
				Symbol:   meta.Symbol,
				Decimals: meta.Decimals,
				Anchor:   anchor.Hex(),
				Fee:      fee,
			}
			var pool common.Address
			var ok bool
			err := chain.WithRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
				var err error
				pool, ok, err = lookup.GetPool(ctx, asset, anchor, fee)
				return err
			})
			if err != nil {
				check.Error = err.Error()
				logger.Warn("pool lookup failed", zap.String("asset", asset.Hex()), zap.Uint32("fee", fee), zap.Error(err))
			} else if ok {
				check.Found = true
				check.Pool = pool.Hex()
				found = true
			}
			if err := out.Write(check); err != nil {
				return err
			}
		}
		if !found {
			missing++
			logger.Warn("no anchor pool", zap.String("asset", asset.Hex()), zap.String("symbol", meta.Symbol))
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", cfg.Out, err)
	}

	logger.Info("verify complete", zap.Int("assets", len(assets)), zap.Int("missing", missing))
	if missing > 0 {
		return fmt.Errorf("%d asset(s) without an anchor pool: %w", missing, dex.ErrPoolMissing)
	}
	return nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Calls after the first return nil.
func (w *jsonlWriter) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	file := w.file
	w.file = nil
	if err := w.writer.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
