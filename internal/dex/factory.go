package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FactoryLookup resolves pools through a deployed V3 factory's getPool.
type FactoryLookup struct {
	caller  ContractCaller
	factory common.Address
}

// NewFactoryLookup builds a PoolLookup backed by an on-chain factory.
func NewFactoryLookup(caller ContractCaller, factory common.Address) *FactoryLookup {
	return &FactoryLookup{caller: caller, factory: factory}
}

// GetPool implements PoolLookup. A zero pool address means no pool.
func (f *FactoryLookup) GetPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error) {
	if f.caller == nil {
		return common.Address{}, false, fmt.Errorf("chain client is nil")
	}
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("parse factory abi: %w", err)
	}
	data, err := factoryABI.Pack("getPool", tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, false, fmt.Errorf("pack getPool: %w", err)
	}
	resp, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("call getPool: %w", err)
	}
	values, err := factoryABI.Unpack("getPool", resp)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("unpack getPool: %w", err)
	}
	if len(values) != 1 {
		return common.Address{}, false, fmt.Errorf("getPool return size %d", len(values))
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, false, fmt.Errorf("getPool: %w", err)
	}
	return pool, pool != (common.Address{}), nil
}
