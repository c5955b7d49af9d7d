package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	// Anchor is the intermediate asset for two-hop routes.
	Anchor common.Address
	// Account is the calling engine: it pays every swap and receives the output.
	Account common.Address
}

// Adapter performs single asset-to-asset swaps for an engine, falling back to
// a two-hop route through the anchor asset when no direct pool exists.
type Adapter struct {
	cfg      AdapterConfig
	exchange Exchange
	logger   *zap.Logger
}

// NewAdapter builds an Adapter with its dependencies.
func NewAdapter(cfg AdapterConfig, exchange Exchange, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, exchange: exchange, logger: logger}
}

// Anchor returns the routing anchor asset.
func (a *Adapter) Anchor() common.Address {
	return a.cfg.Anchor
}

// Swap exchanges amountIn of assetIn for assetOut and returns the realized
// output. The minimum output is zero. timeout is accepted but not forwarded
// to the exchange.
func (a *Adapter) Swap(ctx context.Context, assetIn, assetOut common.Address, amountIn *big.Int, timeout uint64, fee uint32) (*big.Int, error) {
	if a.exchange == nil {
		return nil, fmt.Errorf("exchange is nil")
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return new(big.Int), nil
	}
	if assetIn == assetOut {
		return new(big.Int).Set(amountIn), nil
	}

	_, direct, err := a.exchange.GetPool(ctx, assetIn, assetOut, fee)
	if err != nil {
		return nil, fmt.Errorf("lookup pool: %w", err)
	}
	if direct {
		out, err := a.exchange.ExactInputSingle(ctx, a.cfg.Account, ExactInputSingleParams{
			TokenIn:           assetIn,
			TokenOut:          assetOut,
			Fee:               fee,
			Recipient:         a.cfg.Account,
			AmountIn:          new(big.Int).Set(amountIn),
			AmountOutMinimum:  new(big.Int),
			SqrtPriceLimitX96: new(big.Int),
		})
		if err != nil {
			return nil, fmt.Errorf("single hop %s->%s: %w", assetIn.Hex(), assetOut.Hex(), err)
		}
		a.logger.Debug("swap single hop",
			zap.String("in", assetIn.Hex()),
			zap.String("out", assetOut.Hex()),
			zap.Uint32("fee", fee),
			zap.String("amount_in", amountIn.String()),
			zap.String("amount_out", out.String()),
		)
		return out, nil
	}

	if err := a.checkAnchorRoute(ctx, assetIn, assetOut, fee); err != nil {
		return nil, err
	}
	path, err := EncodePath([]common.Address{assetIn, a.cfg.Anchor, assetOut}, []uint32{fee, fee})
	if err != nil {
		return nil, err
	}
	out, err := a.exchange.ExactInput(ctx, a.cfg.Account, ExactInputParams{
		Path:             path,
		Recipient:        a.cfg.Account,
		AmountIn:         new(big.Int).Set(amountIn),
		AmountOutMinimum: new(big.Int),
	})
	if err != nil {
		return nil, fmt.Errorf("multi hop %s->%s->%s: %w", assetIn.Hex(), a.cfg.Anchor.Hex(), assetOut.Hex(), err)
	}
	a.logger.Debug("swap via anchor",
		zap.String("in", assetIn.Hex()),
		zap.String("anchor", a.cfg.Anchor.Hex()),
		zap.String("out", assetOut.Hex()),
		zap.Uint32("fee", fee),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", out.String()),
	)
	return out, nil
}

func (a *Adapter) checkAnchorRoute(ctx context.Context, assetIn, assetOut common.Address, fee uint32) error {
	if assetIn == a.cfg.Anchor || assetOut == a.cfg.Anchor {
		return fmt.Errorf("%w: %s/%s fee %d", ErrPoolMissing, assetIn.Hex(), assetOut.Hex(), fee)
	}
	for _, leg := range [][2]common.Address{{assetIn, a.cfg.Anchor}, {a.cfg.Anchor, assetOut}} {
		_, ok, err := a.exchange.GetPool(ctx, leg[0], leg[1], fee)
		if err != nil {
			return fmt.Errorf("lookup pool: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s fee %d", ErrPoolMissing, leg[0].Hex(), leg[1].Hex(), fee)
		}
	}
	return nil
}
