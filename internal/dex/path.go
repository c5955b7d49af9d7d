package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addrSize = common.AddressLength
	feeSize  = 3
	hopSize  = addrSize + feeSize
)

// Hop is one leg of a packed swap path.
type Hop struct {
	TokenIn  common.Address
	TokenOut common.Address
	Fee      uint32
}

// EncodePath packs tokens and fees as token(20) | fee(3) | token(20) ...
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("path needs at least two tokens, got %d", len(tokens))
	}
	if len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("path needs %d fees, got %d", len(tokens)-1, len(fees))
	}
	out := make([]byte, 0, addrSize+len(fees)*hopSize)
	for i, fee := range fees {
		if fee >= 1<<24 {
			return nil, fmt.Errorf("fee %d overflows uint24", fee)
		}
		out = append(out, tokens[i].Bytes()...)
		out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	out = append(out, tokens[len(tokens)-1].Bytes()...)
	return out, nil
}

// DecodePath splits a packed path into hops.
func DecodePath(path []byte) ([]Hop, error) {
	if len(path) < addrSize+hopSize || (len(path)-addrSize)%hopSize != 0 {
		return nil, fmt.Errorf("invalid path length %d", len(path))
	}
	hops := make([]Hop, 0, (len(path)-addrSize)/hopSize)
	for offset := 0; offset+hopSize < len(path); offset += hopSize {
		feeBytes := path[offset+addrSize : offset+hopSize]
		hops = append(hops, Hop{
			TokenIn:  common.BytesToAddress(path[offset : offset+addrSize]),
			TokenOut: common.BytesToAddress(path[offset+hopSize : offset+hopSize+addrSize]),
			Fee:      uint32(feeBytes[0])<<16 | uint32(feeBytes[1])<<8 | uint32(feeBytes[2]),
		})
	}
	return hops, nil
}
