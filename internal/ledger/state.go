package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"portfolioSwap/internal/events"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrNegativeAmount      = errors.New("ledger: negative amount")
	ErrNativeRejected      = errors.New("ledger: native transfer rejected")
)

// Message is an external call from one account to another.
type Message struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Contract is code deployed at an address. Implementations must thread ctx
// into any ledger call they make so that reentrant calls join the active
// transaction.
type Contract interface {
	Call(ctx context.Context, msg Message) ([]byte, error)
}

// NativeReceiver is implemented by contracts that observe (and may refuse)
// plain native transfers.
type NativeReceiver interface {
	ReceiveNative(ctx context.Context, from common.Address, amount *big.Int) error
}

// State is the execution environment consumed by the engines: durable
// key-value storage, fungible and native balances, external calls, journaled
// event logs and all-or-nothing application of a top-level call.
type State interface {
	Get(key []byte) ([]byte, bool)
	Put(key, value []byte)
	Delete(key []byte)

	BalanceOf(asset, holder common.Address) *big.Int
	Transfer(asset, from, to common.Address, amount *big.Int) error
	Mint(asset, to common.Address, amount *big.Int) error
	Burn(asset, from common.Address, amount *big.Int) error

	NativeBalance(holder common.Address) *big.Int
	TransferNative(ctx context.Context, from, to common.Address, amount *big.Int) error

	Call(ctx context.Context, msg Message) ([]byte, error)
	Emit(ev events.Event)

	// Apply runs fn atomically. A nested Apply (ctx derived from an outer
	// Apply) is rolled back on its own without aborting the outer call.
	Apply(ctx context.Context, fn func(context.Context) error) error
}
