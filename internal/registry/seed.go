package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"portfolioSwap/internal/model"
)

// SeedBasket is a basket as written in a YAML seed file.
type SeedBasket struct {
	Disabled bool        `yaml:"disabled"`
	Shares   []SeedShare `yaml:"shares"`
}

// SeedShare is one basket entry. Asset is a hex address.
type SeedShare struct {
	Asset string `yaml:"asset"`
	Bips  uint64 `yaml:"bips"`
}

// ParseSeed decodes a YAML list of baskets.
func ParseSeed(r io.Reader) ([]SeedBasket, error) {
	var baskets []SeedBasket
	if err := yaml.NewDecoder(r).Decode(&baskets); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return baskets, nil
}

// ToShares converts the seed entries, validating the addresses.
func (b SeedBasket) ToShares() ([]model.Share, error) {
	shares := make([]model.Share, 0, len(b.Shares))
	for _, share := range b.Shares {
		if !common.IsHexAddress(share.Asset) {
			return nil, fmt.Errorf("invalid asset address: %q", share.Asset)
		}
		shares = append(shares, model.Share{Asset: common.HexToAddress(share.Asset), Bips: share.Bips})
	}
	return shares, nil
}

// Seed registers every basket in order and returns the assigned ids.
func (r *Registry) Seed(ctx context.Context, caller common.Address, baskets []SeedBasket) ([]uint64, error) {
	ids := make([]uint64, 0, len(baskets))
	for i, basket := range baskets {
		shares, err := basket.ToShares()
		if err != nil {
			return nil, fmt.Errorf("basket %d: %w", i, err)
		}
		id, err := r.Add(ctx, caller, shares)
		if err != nil {
			return nil, fmt.Errorf("basket %d: %w", i, err)
		}
		if basket.Disabled {
			if err := r.Disable(ctx, caller, id); err != nil {
				return nil, fmt.Errorf("basket %d: %w", i, err)
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}
