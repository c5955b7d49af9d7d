package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Action is a single external call: target, attached native value, an optional
// canonical function signature and the call payload.
type Action struct {
	Target    common.Address
	Value     *big.Int
	Signature string
	Payload   []byte
}

// ActionBatch is the wire form of an action list as four parallel arrays.
type ActionBatch struct {
	Targets    []common.Address `json:"targets"`
	Values     []*big.Int       `json:"values"`
	Signatures []string         `json:"signatures"`
	Payloads   [][]byte         `json:"payloads"`
}

// NewActionBatch packs actions into parallel arrays.
func NewActionBatch(actions ...Action) ActionBatch {
	batch := ActionBatch{
		Targets:    make([]common.Address, 0, len(actions)),
		Values:     make([]*big.Int, 0, len(actions)),
		Signatures: make([]string, 0, len(actions)),
		Payloads:   make([][]byte, 0, len(actions)),
	}
	for _, action := range actions {
		value := action.Value
		if value == nil {
			value = new(big.Int)
		}
		batch.Targets = append(batch.Targets, action.Target)
		batch.Values = append(batch.Values, value)
		batch.Signatures = append(batch.Signatures, action.Signature)
		batch.Payloads = append(batch.Payloads, action.Payload)
	}
	return batch
}

// Balanced reports whether all four arrays have the same length.
func (b ActionBatch) Balanced() bool {
	n := len(b.Targets)
	return len(b.Values) == n && len(b.Signatures) == n && len(b.Payloads) == n
}

// Len returns the number of targets.
func (b ActionBatch) Len() int {
	return len(b.Targets)
}

// Actions zips the parallel arrays. Callers must check Balanced first.
func (b ActionBatch) Actions() []Action {
	out := make([]Action, 0, len(b.Targets))
	for i := range b.Targets {
		out = append(out, Action{
			Target:    b.Targets[i],
			Value:     b.Values[i],
			Signature: b.Signatures[i],
			Payload:   b.Payloads[i],
		})
	}
	return out
}
