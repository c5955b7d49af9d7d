// Package broker sells weighted baskets of assets as ownership tokens and
// liquidates them back into a single asset.
package broker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"portfolioSwap/internal/access"
	"portfolioSwap/internal/dex"
	"portfolioSwap/internal/ledger"
	"portfolioSwap/internal/model"
	"portfolioSwap/internal/nft"
)

const (
	DefaultServiceFeeBips  uint64 = 100
	DefaultFeeTier         uint32 = 3000
	DefaultTimeout         uint64 = 900
	DefaultLookbackSeconds uint64 = 7200
	MinLookbackSeconds     uint64 = 60
)

var (
	ErrPaymentZero          = errors.New("broker: payment is zero")
	ErrPortfolioMissing     = errors.New("broker: portfolio does not exist")
	ErrPortfolioDisabled    = errors.New("broker: portfolio is disabled")
	ErrNotAuthorized        = nft.ErrNotAuthorized
	ErrHoldingMissing       = errors.New("broker: holding missing")
	ErrNativeTransferFailed = errors.New("broker: native transfer failed")
	ErrZeroAddress          = errors.New("broker: zero address")
	ErrNoChange             = errors.New("broker: value unchanged")
	ErrLookbackTooShort     = errors.New("broker: lookback window below 60 seconds")
	ErrFeeTooHigh           = errors.New("broker: service fee above 10000 bips")
	ErrNoEstimator          = errors.New("broker: slippage estimator not configured")
)

var (
	paramsKey     = []byte("broker/params")
	holdingPrefix = []byte("broker/holding/")
)

// Registry is the portfolio source consulted on purchase.
type Registry interface {
	Address() common.Address
	Portfolio(ctx context.Context, id uint64) (model.Portfolio, error)
}

// Swapper exchanges one asset for another on behalf of the broker account.
type Swapper interface {
	Swap(ctx context.Context, assetIn, assetOut common.Address, amountIn *big.Int, timeout uint64, fee uint32) (*big.Int, error)
}

// Wrapper converts between the native asset and its wrapped token.
type Wrapper interface {
	Asset() common.Address
	Wrap(ctx context.Context, holder common.Address, amount *big.Int) error
	Unwrap(ctx context.Context, holder common.Address, amount *big.Int) error
}

// Config configures a Broker. Zero routing and lookback values fall back to
// the defaults; ServiceFeeBips is used as given.
type Config struct {
	// Address is the broker account: it holds basket assets and retained fees.
	Address         common.Address
	ServiceFeeBips  uint64
	DefaultFeeTier  uint32
	DefaultTimeout  uint64
	LookbackSeconds uint64
}

// Params are the mutable engine parameters.
type Params struct {
	ServiceFeeBips  uint64
	DefaultFeeTier  uint32
	DefaultTimeout  uint64
	LookbackSeconds uint64
}

// Broker runs purchases, liquidations and the administrative surface.
type Broker struct {
	cfg       Config
	state     ledger.State
	swapper   Swapper
	wrapper   Wrapper
	tokens    *nft.Collection
	control   *access.Control
	estimator *dex.SlippageEstimator
	logger    *zap.Logger

	mu       sync.RWMutex
	registry Registry
}

// New builds a Broker with its dependencies. estimator may be nil.
func New(cfg Config, state ledger.State, registry Registry, swapper Swapper, wrapper Wrapper, control *access.Control, estimator *dex.SlippageEstimator, logger *zap.Logger) (*Broker, error) {
	if cfg.ServiceFeeBips > model.BipsScale {
		return nil, fmt.Errorf("%w: %d", ErrFeeTooHigh, cfg.ServiceFeeBips)
	}
	if cfg.LookbackSeconds != 0 && cfg.LookbackSeconds < MinLookbackSeconds {
		return nil, fmt.Errorf("%w: %d", ErrLookbackTooShort, cfg.LookbackSeconds)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultFeeTier == 0 {
		cfg.DefaultFeeTier = DefaultFeeTier
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.LookbackSeconds == 0 {
		cfg.LookbackSeconds = DefaultLookbackSeconds
	}
	return &Broker{
		cfg:       cfg,
		state:     state,
		swapper:   swapper,
		wrapper:   wrapper,
		tokens:    nft.New(state, "portfolio"),
		control:   control,
		estimator: estimator,
		logger:    logger,
		registry:  registry,
	}, nil
}

// Address returns the broker account.
func (b *Broker) Address() common.Address {
	return b.cfg.Address
}

// Tokens returns the ownership token collection.
func (b *Broker) Tokens() *nft.Collection {
	return b.tokens
}

// Registry returns the active portfolio registry.
func (b *Broker) Registry() Registry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.registry
}

// Params returns the current engine parameters.
func (b *Broker) Params() (Params, error) {
	raw, ok := b.state.Get(paramsKey)
	if !ok {
		return Params{
			ServiceFeeBips:  b.cfg.ServiceFeeBips,
			DefaultFeeTier:  b.cfg.DefaultFeeTier,
			DefaultTimeout:  b.cfg.DefaultTimeout,
			LookbackSeconds: b.cfg.LookbackSeconds,
		}, nil
	}
	var params Params
	if err := rlp.DecodeBytes(raw, &params); err != nil {
		return Params{}, fmt.Errorf("decode params: %w", err)
	}
	return params, nil
}

func (b *Broker) storeParams(params Params) error {
	encoded, err := rlp.EncodeToBytes(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	b.state.Put(paramsKey, encoded)
	return nil
}

// Holding returns the basket recorded for tokenID.
func (b *Broker) Holding(tokenID uint64) (model.Holding, bool, error) {
	raw, ok := b.state.Get(holdingKey(tokenID))
	if !ok {
		return model.Holding{}, false, nil
	}
	var holding model.Holding
	if err := rlp.DecodeBytes(raw, &holding); err != nil {
		return model.Holding{}, false, fmt.Errorf("decode holding %d: %w", tokenID, err)
	}
	return holding, true, nil
}

func (b *Broker) storeHolding(tokenID uint64, holding model.Holding) error {
	encoded, err := rlp.EncodeToBytes(holding)
	if err != nil {
		return fmt.Errorf("encode holding %d: %w", tokenID, err)
	}
	b.state.Put(holdingKey(tokenID), encoded)
	return nil
}

func holdingKey(tokenID uint64) []byte {
	return strconv.AppendUint(append([]byte{}, holdingPrefix...), tokenID, 10)
}

// EstimateMinimumOut quotes a swap over the configured lookback window and
// discounts it by toleranceBips. Swaps never apply this floor.
func (b *Broker) EstimateMinimumOut(ctx context.Context, assetIn, assetOut common.Address, amountIn *big.Int, fee uint32, toleranceBips uint64) (*big.Int, error) {
	if b.estimator == nil {
		return nil, ErrNoEstimator
	}
	params, err := b.Params()
	if err != nil {
		return nil, err
	}
	if fee == 0 {
		fee = params.DefaultFeeTier
	}
	return b.estimator.MinimumAmountOut(ctx, assetIn, assetOut, fee, amountIn, params.LookbackSeconds, toleranceBips)
}

func (b *Broker) routing(params Params, timeout uint64, fee uint32) (uint64, uint32) {
	if timeout == 0 {
		timeout = params.DefaultTimeout
	}
	if fee == 0 {
		fee = params.DefaultFeeTier
	}
	return timeout, fee
}

// InvestedAmount is amountPaid net of the service fee, rounded down.
func InvestedAmount(amountPaid *big.Int, serviceFeeBips uint64) *big.Int {
	if serviceFeeBips >= model.BipsScale {
		return new(big.Int)
	}
	return bipsOf(amountPaid, model.BipsScale-serviceFeeBips)
}

func bipsOf(amount *big.Int, bips uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bips))
	return out.Div(out, new(big.Int).SetUint64(model.BipsScale))
}
