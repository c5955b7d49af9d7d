package model

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKey identifies a pool by its sorted token pair and fee tier.
type PoolKey struct {
	Token0 common.Address `json:"token0"`
	Token1 common.Address `json:"token1"`
	Fee    uint32         `json:"fee"`
}

// NewPoolKey orders the pair so that Token0 < Token1.
func NewPoolKey(a, b common.Address, fee uint32) PoolKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return PoolKey{Token0: a, Token1: b, Fee: fee}
}
