package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"portfolioSwap/internal/model"
)

// Quoter prices an exact-input swap on a single pool, averaged over the last
// secondsAgo seconds where the venue supports it.
type Quoter interface {
	Quote(ctx context.Context, assetIn, assetOut common.Address, fee uint32, amountIn *big.Int, secondsAgo uint32) (*big.Int, error)
}

// QuoteSource is a venue that can both resolve pools and quote them.
type QuoteSource interface {
	PoolLookup
	Quoter
}

// SlippageEstimator derives a minimum acceptable output from a time-weighted
// quote. The swap path does not use it: Adapter.Swap always sends a zero
// minimum output.
type SlippageEstimator struct {
	source QuoteSource
	anchor common.Address
}

// NewSlippageEstimator builds an estimator that routes quotes the same way the
// adapter routes swaps.
func NewSlippageEstimator(source QuoteSource, anchor common.Address) *SlippageEstimator {
	return &SlippageEstimator{source: source, anchor: anchor}
}

// MinimumAmountOut quotes amountIn over the lookback window and discounts the
// result by toleranceBips.
func (e *SlippageEstimator) MinimumAmountOut(ctx context.Context, assetIn, assetOut common.Address, fee uint32, amountIn *big.Int, lookbackSeconds uint64, toleranceBips uint64) (*big.Int, error) {
	if toleranceBips > model.BipsScale {
		return nil, fmt.Errorf("tolerance %d exceeds %d bips", toleranceBips, model.BipsScale)
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return new(big.Int), nil
	}
	secondsAgo := uint32(lookbackSeconds)
	if lookbackSeconds > uint64(^uint32(0)) {
		secondsAgo = ^uint32(0)
	}

	quote, err := e.quote(ctx, assetIn, assetOut, fee, amountIn, secondsAgo)
	if err != nil {
		return nil, err
	}
	minOut := new(big.Int).Mul(quote, new(big.Int).SetUint64(model.BipsScale-toleranceBips))
	return minOut.Div(minOut, new(big.Int).SetUint64(model.BipsScale)), nil
}

func (e *SlippageEstimator) quote(ctx context.Context, assetIn, assetOut common.Address, fee uint32, amountIn *big.Int, secondsAgo uint32) (*big.Int, error) {
	if assetIn == assetOut {
		return new(big.Int).Set(amountIn), nil
	}
	_, direct, err := e.source.GetPool(ctx, assetIn, assetOut, fee)
	if err != nil {
		return nil, fmt.Errorf("lookup pool: %w", err)
	}
	if direct {
		return e.source.Quote(ctx, assetIn, assetOut, fee, amountIn, secondsAgo)
	}
	if assetIn == e.anchor || assetOut == e.anchor {
		return nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolMissing, assetIn.Hex(), assetOut.Hex(), fee)
	}
	mid, err := e.quote(ctx, assetIn, e.anchor, fee, amountIn, secondsAgo)
	if err != nil {
		return nil, err
	}
	return e.quote(ctx, e.anchor, assetOut, fee, mid, secondsAgo)
}
