package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// HoldingEntry is the amount of one asset attributed to an ownership token.
type HoldingEntry struct {
	Asset  common.Address `json:"asset"`
	Amount *big.Int       `json:"amount"`
}

// Holding is the basket bought for an ownership token, pending liquidation.
type Holding struct {
	PaidWithNative bool           `json:"paid_with_native"`
	Entries        []HoldingEntry `json:"entries"`
}
