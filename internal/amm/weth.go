package amm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"portfolioSwap/internal/ledger"
)

const wethABIJSON = `[
  {"inputs": [], "name": "deposit", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"name": "wad", "type": "uint256"}], "name": "withdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "dst", "type": "address"}, {"name": "wad", "type": "uint256"}], "name": "transfer", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// WrappedNative is the wrapped representation of the native asset. Its token
// balances live in the ledger under its own address; the native backing is
// held by the same address.
type WrappedNative struct {
	state   ledger.State
	address common.Address
	abi     abi.ABI
}

// NewWrappedNative builds the wrapper deployed at address.
func NewWrappedNative(state ledger.State, address common.Address) (*WrappedNative, error) {
	parsed, err := abi.JSON(strings.NewReader(wethABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse weth abi: %w", err)
	}
	return &WrappedNative{state: state, address: address, abi: parsed}, nil
}

// Asset returns the wrapped token address.
func (w *WrappedNative) Asset() common.Address {
	return w.address
}

// Wrap converts amount of holder's native balance into wrapped tokens.
func (w *WrappedNative) Wrap(ctx context.Context, holder common.Address, amount *big.Int) error {
	return w.state.Apply(ctx, func(ctx context.Context) error {
		if err := w.state.TransferNative(ctx, holder, w.address, amount); err != nil {
			return fmt.Errorf("wrap: %w", err)
		}
		return w.state.Mint(w.address, holder, amount)
	})
}

// Unwrap burns amount of holder's wrapped tokens and returns native balance.
func (w *WrappedNative) Unwrap(ctx context.Context, holder common.Address, amount *big.Int) error {
	return w.state.Apply(ctx, func(ctx context.Context) error {
		if err := w.state.Burn(w.address, holder, amount); err != nil {
			return fmt.Errorf("unwrap: %w", err)
		}
		return w.state.TransferNative(ctx, w.address, holder, amount)
	})
}

// Call implements ledger.Contract so the wrapper can be driven by raw calls.
// The ledger has already moved msg.Value to the wrapper.
func (w *WrappedNative) Call(ctx context.Context, msg ledger.Message) ([]byte, error) {
	if len(msg.Data) == 0 {
		return nil, w.state.Mint(w.address, msg.From, msg.Value)
	}
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("weth: short calldata")
	}
	method, err := w.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, fmt.Errorf("weth: %w", err)
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("weth: unpack %s: %w", method.Name, err)
	}

	switch method.Name {
	case "deposit":
		return nil, w.state.Mint(w.address, msg.From, msg.Value)
	case "withdraw":
		return nil, w.Unwrap(ctx, msg.From, args[0].(*big.Int))
	case "transfer":
		if err := w.state.Transfer(w.address, msg.From, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "balanceOf":
		return method.Outputs.Pack(w.state.BalanceOf(w.address, args[0].(common.Address)))
	default:
		return nil, fmt.Errorf("weth: unsupported method %s", method.Name)
	}
}
