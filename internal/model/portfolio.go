package model

import "github.com/ethereum/go-ethereum/common"

// BipsScale is the basis-point denominator; 10000 bips == 100%.
const BipsScale uint64 = 10_000

// Share is a single weighted basket entry.
type Share struct {
	Asset common.Address `json:"asset" yaml:"asset"`
	Bips  uint64         `json:"bips" yaml:"bips"`
}

// Portfolio is a named basket of assets whose weights sum to BipsScale.
type Portfolio struct {
	ID      uint64  `json:"id"`
	Enabled bool    `json:"enabled"`
	Shares  []Share `json:"shares"`
}

// Exists reports whether the portfolio has been registered.
func (p Portfolio) Exists() bool {
	return len(p.Shares) > 0
}

// TotalBips sums the basket weights.
func TotalBips(shares []Share) uint64 {
	var total uint64
	for _, share := range shares {
		total += share.Bips
	}
	return total
}
