package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"portfolioSwap/internal/events"
)

var (
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

type rejecting struct{}

func (rejecting) Call(context.Context, Message) ([]byte, error) { return nil, nil }

func (rejecting) ReceiveNative(context.Context, common.Address, *big.Int) error {
	return errors.New("no thanks")
}

type failing struct{ state State }

func (f failing) Call(ctx context.Context, msg Message) ([]byte, error) {
	f.state.Put([]byte("side-effect"), []byte{1})
	return nil, errors.New("boom")
}

func TestApplyRevertsOnError(t *testing.T) {
	rec := &events.Recorder{}
	mem := NewMemory(rec, nil)
	require.NoError(t, mem.Mint(usdc, alice, big.NewInt(100)))

	err := mem.Apply(context.Background(), func(ctx context.Context) error {
		require.NoError(t, mem.Transfer(usdc, alice, bob, big.NewInt(40)))
		mem.Put([]byte("k"), []byte("v"))
		mem.Emit(events.Event{Type: "x"})
		return errors.New("abort")
	})
	require.Error(t, err)

	require.Equal(t, int64(100), mem.BalanceOf(usdc, alice).Int64())
	require.Equal(t, int64(0), mem.BalanceOf(usdc, bob).Int64())
	_, ok := mem.Get([]byte("k"))
	require.False(t, ok)
	require.Empty(t, rec.Events())
}

func TestApplyCommitsAndDeliversEvents(t *testing.T) {
	rec := &events.Recorder{}
	mem := NewMemory(rec, nil)
	require.NoError(t, mem.Mint(usdc, alice, big.NewInt(100)))

	err := mem.Apply(context.Background(), func(ctx context.Context) error {
		mem.Emit(events.Event{Type: "moved"})
		return mem.Transfer(usdc, alice, bob, big.NewInt(40))
	})
	require.NoError(t, err)
	require.Equal(t, int64(60), mem.BalanceOf(usdc, alice).Int64())
	require.Equal(t, int64(40), mem.BalanceOf(usdc, bob).Int64())
	require.Len(t, rec.OfType("moved"), 1)
}

func TestTransferInsufficientBalance(t *testing.T) {
	mem := NewMemory(nil, nil)
	err := mem.Transfer(usdc, alice, bob, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestNestedCallFailureOnlyRevertsSubCall(t *testing.T) {
	mem := NewMemory(nil, nil)
	target := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	mem.Deploy(target, failing{state: mem})
	mem.SetNativeBalance(alice, big.NewInt(10))

	err := mem.Apply(context.Background(), func(ctx context.Context) error {
		mem.Put([]byte("outer"), []byte{1})
		_, callErr := mem.Call(ctx, Message{From: alice, To: target, Value: big.NewInt(5)})
		require.Error(t, callErr)
		return nil
	})
	require.NoError(t, err)

	_, ok := mem.Get([]byte("outer"))
	require.True(t, ok)
	_, ok = mem.Get([]byte("side-effect"))
	require.False(t, ok)
	require.Equal(t, int64(10), mem.NativeBalance(alice).Int64())
}

func TestTransferNativeRejected(t *testing.T) {
	mem := NewMemory(nil, nil)
	target := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	mem.Deploy(target, rejecting{})
	mem.SetNativeBalance(alice, big.NewInt(10))

	err := mem.TransferNative(context.Background(), alice, target, big.NewInt(3))
	require.ErrorIs(t, err, ErrNativeRejected)
	require.Equal(t, int64(10), mem.NativeBalance(alice).Int64())
	require.Equal(t, int64(0), mem.NativeBalance(target).Int64())
}

func TestCallToAccountWithoutCodeMovesValue(t *testing.T) {
	mem := NewMemory(nil, nil)
	mem.SetNativeBalance(alice, big.NewInt(10))

	out, err := mem.Call(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(4)})
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, int64(4), mem.NativeBalance(bob).Int64())
}

type counting struct{ calls int }

func (c *counting) Call(context.Context, Message) ([]byte, error) {
	c.calls++
	return nil, nil
}

func TestCallRejectsNegativeValue(t *testing.T) {
	mem := NewMemory(nil, nil)
	target := &counting{}
	mem.Deploy(bob, target)
	mem.SetNativeBalance(alice, big.NewInt(10))

	_, err := mem.Call(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(-1)})
	require.ErrorIs(t, err, ErrNegativeAmount)
	require.Zero(t, target.calls)
	require.Equal(t, int64(10), mem.NativeBalance(alice).Int64())
}
