// Package amm is an in-memory constant-product exchange with V3-style fee
// tiers. Pool reserves are ordinary ledger balances held by the pool address,
// so every swap is part of the caller's atomic transaction.
package amm

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"portfolioSwap/internal/model"
)

// FeeDenominator is the fee-tier scale: 3000 == 0.3%.
const FeeDenominator = 1_000_000

var (
	ErrIdenticalTokens       = errors.New("amm: identical tokens")
	ErrInvalidFee            = errors.New("amm: invalid fee tier")
	ErrPoolExists            = errors.New("amm: pool exists")
	ErrPoolNotFound          = errors.New("amm: pool not found")
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")
	ErrInsufficientOutput    = errors.New("amm: output below minimum")
)

// PoolAddress derives the deterministic address of a pool.
func PoolAddress(key model.PoolKey) common.Address {
	var fee [4]byte
	fee[0], fee[1], fee[2], fee[3] = byte(key.Fee>>24), byte(key.Fee>>16), byte(key.Fee>>8), byte(key.Fee)
	hash := crypto.Keccak256(key.Token0.Bytes(), key.Token1.Bytes(), fee[:])
	return common.BytesToAddress(hash[12:])
}

// AmountOut applies the fee to amountIn and prices it against the reserves.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, fee uint32) (*big.Int, error) {
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	afterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(FeeDenominator-fee)))
	afterFee.Div(afterFee, big.NewInt(FeeDenominator))

	numerator := new(big.Int).Mul(afterFee, reserveOut)
	denominator := new(big.Int).Add(reserveIn, afterFee)
	return numerator.Div(numerator, denominator), nil
}
