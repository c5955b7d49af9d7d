package dex

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPoolMissing is returned when neither a direct pool nor the two-hop route
// through the anchor asset exists.
var ErrPoolMissing = errors.New("dex: pool missing")

// PoolLookup resolves the pool for a token pair and fee tier.
type PoolLookup interface {
	GetPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error)
}

// ExactInputSingleParams mirrors the V3 router single-hop swap arguments.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// ExactInputParams mirrors the V3 router multi-hop swap arguments. Path is
// the packed token/fee path produced by EncodePath.
type ExactInputParams struct {
	Path             []byte
	Recipient        common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// Exchange is the pool-based exchange consumed by the adapter. The payer is
// debited amountIn; the recipient is credited the output.
type Exchange interface {
	PoolLookup
	ExactInputSingle(ctx context.Context, payer common.Address, params ExactInputSingleParams) (*big.Int, error)
	ExactInput(ctx context.Context, payer common.Address, params ExactInputParams) (*big.Int, error)
}
