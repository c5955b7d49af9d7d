package amm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"portfolioSwap/internal/dex"
	"portfolioSwap/internal/ledger"
	"portfolioSwap/internal/model"
)

var poolPrefix = []byte("amm/pool/")

// Exchange implements dex.Exchange and dex.QuoteSource over ledger balances.
type Exchange struct {
	state  ledger.State
	router common.Address
	logger *zap.Logger
}

// NewExchange builds an exchange whose router account holds intermediate
// multi-hop outputs.
func NewExchange(state ledger.State, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		state:  state,
		router: common.BytesToAddress(crypto.Keccak256([]byte("amm/router"))[12:]),
		logger: logger,
	}
}

// Router returns the router account.
func (e *Exchange) Router() common.Address {
	return e.router
}

func poolKeyBytes(pool common.Address) []byte {
	return append(append([]byte{}, poolPrefix...), pool.Bytes()...)
}

// CreatePool registers an empty pool for the pair and fee tier.
func (e *Exchange) CreatePool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, ErrIdenticalTokens
	}
	if fee == 0 || fee >= FeeDenominator {
		return common.Address{}, fmt.Errorf("%w: %d", ErrInvalidFee, fee)
	}
	key := model.NewPoolKey(tokenA, tokenB, fee)
	pool := PoolAddress(key)
	err := e.state.Apply(ctx, func(context.Context) error {
		if _, ok := e.state.Get(poolKeyBytes(pool)); ok {
			return fmt.Errorf("%w: %s", ErrPoolExists, pool.Hex())
		}
		encoded, err := rlp.EncodeToBytes(key)
		if err != nil {
			return fmt.Errorf("encode pool: %w", err)
		}
		e.state.Put(poolKeyBytes(pool), encoded)
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	e.logger.Debug("pool created", zap.String("pool", pool.Hex()), zap.String("token0", key.Token0.Hex()), zap.String("token1", key.Token1.Hex()), zap.Uint32("fee", fee))
	return pool, nil
}

// AddLiquidity moves amountA/amountB from provider into the pool reserves.
func (e *Exchange) AddLiquidity(ctx context.Context, provider, tokenA, tokenB common.Address, fee uint32, amountA, amountB *big.Int) error {
	return e.state.Apply(ctx, func(ctx context.Context) error {
		pool, ok, err := e.GetPool(ctx, tokenA, tokenB, fee)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, tokenA.Hex(), tokenB.Hex(), fee)
		}
		if err := e.state.Transfer(tokenA, provider, pool, amountA); err != nil {
			return fmt.Errorf("deposit %s: %w", tokenA.Hex(), err)
		}
		if err := e.state.Transfer(tokenB, provider, pool, amountB); err != nil {
			return fmt.Errorf("deposit %s: %w", tokenB.Hex(), err)
		}
		return nil
	})
}

// GetPool implements dex.PoolLookup.
func (e *Exchange) GetPool(_ context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error) {
	if tokenA == tokenB {
		return common.Address{}, false, nil
	}
	pool := PoolAddress(model.NewPoolKey(tokenA, tokenB, fee))
	if _, ok := e.state.Get(poolKeyBytes(pool)); !ok {
		return common.Address{}, false, nil
	}
	return pool, true, nil
}

// Reserves returns the pool balances of tokenA and tokenB.
func (e *Exchange) Reserves(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (*big.Int, *big.Int, error) {
	pool, ok, err := e.GetPool(ctx, tokenA, tokenB, fee)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, tokenA.Hex(), tokenB.Hex(), fee)
	}
	return e.state.BalanceOf(tokenA, pool), e.state.BalanceOf(tokenB, pool), nil
}

// Quote implements dex.Quoter. Pools keep no price history, so secondsAgo is
// ignored and the spot reserves are used.
func (e *Exchange) Quote(ctx context.Context, assetIn, assetOut common.Address, fee uint32, amountIn *big.Int, _ uint32) (*big.Int, error) {
	reserveIn, reserveOut, err := e.Reserves(ctx, assetIn, assetOut, fee)
	if err != nil {
		return nil, err
	}
	return AmountOut(amountIn, reserveIn, reserveOut, fee)
}

// ExactInputSingle implements dex.Exchange. A non-zero price limit is not
// supported by constant-product pools and is ignored.
func (e *Exchange) ExactInputSingle(ctx context.Context, payer common.Address, params dex.ExactInputSingleParams) (*big.Int, error) {
	var out *big.Int
	err := e.state.Apply(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.swap(ctx, payer, params.Recipient, params.TokenIn, params.TokenOut, params.Fee, params.AmountIn)
		if err != nil {
			return err
		}
		return checkMinimum(out, params.AmountOutMinimum)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExactInput implements dex.Exchange. Intermediate outputs are held by the
// router between hops.
func (e *Exchange) ExactInput(ctx context.Context, payer common.Address, params dex.ExactInputParams) (*big.Int, error) {
	hops, err := dex.DecodePath(params.Path)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	err = e.state.Apply(ctx, func(ctx context.Context) error {
		amount := params.AmountIn
		from := payer
		for i, hop := range hops {
			to := e.router
			if i == len(hops)-1 {
				to = params.Recipient
			}
			next, err := e.swap(ctx, from, to, hop.TokenIn, hop.TokenOut, hop.Fee, amount)
			if err != nil {
				return fmt.Errorf("hop %d: %w", i, err)
			}
			amount = next
			from = e.router
		}
		out = amount
		return checkMinimum(out, params.AmountOutMinimum)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Exchange) swap(ctx context.Context, payer, recipient, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error) {
	pool, ok, err := e.GetPool(ctx, tokenIn, tokenOut, fee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, tokenIn.Hex(), tokenOut.Hex(), fee)
	}
	out, err := AmountOut(amountIn, e.state.BalanceOf(tokenIn, pool), e.state.BalanceOf(tokenOut, pool), fee)
	if err != nil {
		return nil, err
	}
	if err := e.state.Transfer(tokenIn, payer, pool, amountIn); err != nil {
		return nil, fmt.Errorf("pay %s: %w", tokenIn.Hex(), err)
	}
	if err := e.state.Transfer(tokenOut, pool, recipient, out); err != nil {
		return nil, fmt.Errorf("pay out %s: %w", tokenOut.Hex(), err)
	}
	return out, nil
}

func checkMinimum(out, minimum *big.Int) error {
	if minimum != nil && out.Cmp(minimum) < 0 {
		return fmt.Errorf("%w: got %s, want at least %s", ErrInsufficientOutput, out, minimum)
	}
	return nil
}
