package actions

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"portfolioSwap/internal/events"
	"portfolioSwap/internal/ledger"
	"portfolioSwap/internal/model"
	"portfolioSwap/internal/nft"
)

var (
	executorAddr = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	echoAddr     = common.HexToAddress("0x0000000000000000000000000000000000000e02")
	revertAddr   = common.HexToAddress("0x0000000000000000000000000000000000000e03")
	alice        = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000a02")
)

// echo counts its calls in ledger storage and returns the call data.
type echo struct{ state ledger.State }

var echoCount = []byte("test/echo/count")

func (e echo) Call(_ context.Context, msg ledger.Message) ([]byte, error) {
	e.state.Put(echoCount, binary.BigEndian.AppendUint64(nil, e.calls()+1))
	return msg.Data, nil
}

func (e echo) calls() uint64 {
	raw, ok := e.state.Get(echoCount)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

type reverter struct{}

func (reverter) Call(context.Context, ledger.Message) ([]byte, error) {
	return nil, errors.New("boom")
}

func setup(t *testing.T) (*Executor, *ledger.Memory, echo, *events.Recorder) {
	t.Helper()
	recorder := &events.Recorder{}
	mem := ledger.NewMemory(recorder, nil)
	target := echo{state: mem}
	mem.Deploy(echoAddr, target)
	mem.Deploy(revertAddr, reverter{})
	mem.SetNativeBalance(alice, big.NewInt(1_000))
	return New(Config{Address: executorAddr}, mem, nil), mem, target, recorder
}

func echoBatch(n int) model.ActionBatch {
	actions := make([]model.Action, 0, n)
	for i := 0; i < n; i++ {
		actions = append(actions, model.Action{Target: echoAddr, Payload: []byte{byte(i)}})
	}
	return model.NewActionBatch(actions...)
}

func TestSelector(t *testing.T) {
	sel := Selector("transfer(address,uint256)")
	require.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, sel[:])
	require.Equal(t, []byte{1, 2}, EncodeCall("", []byte{1, 2}))
	require.Equal(t, append(crypto.Keccak256([]byte("ping()"))[:4], 7), EncodeCall("ping()", []byte{7}))
}

func TestValidateBatchShape(t *testing.T) {
	require.NoError(t, Validate(echoBatch(1), false))
	require.NoError(t, Validate(echoBatch(MaxActions), false))
	require.NoError(t, Validate(model.ActionBatch{}, true))
	require.ErrorIs(t, Validate(model.ActionBatch{}, false), ErrNoActions)
	require.ErrorIs(t, Validate(echoBatch(MaxActions+1), true), ErrTooManyOperations)

	bad := echoBatch(2)
	bad.Payloads = bad.Payloads[:1]
	require.ErrorIs(t, Validate(bad, true), ErrArrayMismatch)
}

func TestMintRunsActionsAndStoresBurnBatch(t *testing.T) {
	ex, mem, target, recorder := setup(t)
	ctx := context.Background()

	mintBatch := model.NewActionBatch(
		model.Action{Target: echoAddr, Payload: []byte("raw")},
		model.Action{Target: echoAddr, Signature: "ping()", Payload: []byte{9}, Value: big.NewInt(40)},
	)
	tokenID, results, err := ex.Mint(ctx, alice, big.NewInt(100), bob, mintBatch, echoBatch(3))
	require.NoError(t, err)
	require.Equal(t, uint64(1), tokenID)
	require.Len(t, results, 2)
	require.Equal(t, []byte("raw"), results[0])
	require.Equal(t, EncodeCall("ping()", []byte{9}), results[1])
	require.Equal(t, uint64(2), target.calls())

	owner, err := ex.Tokens().OwnerOf(tokenID)
	require.NoError(t, err)
	require.Equal(t, bob, owner)
	require.Equal(t, int64(900), mem.NativeBalance(alice).Int64())
	require.Equal(t, int64(60), mem.NativeBalance(executorAddr).Int64())
	require.Equal(t, int64(40), mem.NativeBalance(echoAddr).Int64())

	stored, ok, err := ex.BurnActions(tokenID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, stored.Len())
	require.Len(t, recorder.OfType(events.TypeActionsMinted), 1)
}

func TestMintBatchLimits(t *testing.T) {
	ex, _, target, _ := setup(t)
	ctx := context.Background()

	for _, n := range []int{1, MaxActions} {
		_, results, err := ex.Mint(ctx, alice, nil, bob, echoBatch(n), model.ActionBatch{})
		require.NoError(t, err)
		require.Len(t, results, n)
	}
	_, _, err := ex.Mint(ctx, alice, nil, bob, model.ActionBatch{}, model.ActionBatch{})
	require.ErrorIs(t, err, ErrNoActions)
	_, _, err = ex.Mint(ctx, alice, nil, bob, echoBatch(MaxActions+1), model.ActionBatch{})
	require.ErrorIs(t, err, ErrTooManyOperations)
	_, _, err = ex.Mint(ctx, alice, nil, bob, echoBatch(1), echoBatch(MaxActions+1))
	require.ErrorIs(t, err, ErrTooManyOperations)

	bad := echoBatch(2)
	bad.Values = bad.Values[:1]
	_, _, err = ex.Mint(ctx, alice, nil, bob, bad, model.ActionBatch{})
	require.ErrorIs(t, err, ErrArrayMismatch)

	require.Equal(t, uint64(1+MaxActions), target.calls())
	require.Equal(t, uint64(2), ex.Tokens().BalanceOf(bob))
}

func TestMintRevertLeavesNoTrace(t *testing.T) {
	ex, mem, target, recorder := setup(t)
	batch := model.NewActionBatch(
		model.Action{Target: echoAddr},
		model.Action{Target: revertAddr},
	)
	_, _, err := ex.Mint(context.Background(), alice, big.NewInt(10), bob, batch, echoBatch(1))
	require.ErrorIs(t, err, ErrCallReverted)

	require.Zero(t, target.calls())
	require.False(t, ex.Tokens().Exists(1))
	_, ok, err := ex.BurnActions(1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(1_000), mem.NativeBalance(alice).Int64())
	require.Empty(t, recorder.Events())
}

func TestBurnRunsLatestRecord(t *testing.T) {
	ex, _, target, recorder := setup(t)
	ctx := context.Background()
	tokenID, _, err := ex.Mint(ctx, alice, nil, bob, echoBatch(1), model.NewActionBatch(model.Action{Target: revertAddr}))
	require.NoError(t, err)

	require.ErrorIs(t, ex.UpdateBurnParams(ctx, alice, tokenID, echoBatch(2)), ErrNotAuthorized)
	_, err = ex.Burn(ctx, alice, nil, tokenID)
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = ex.Burn(ctx, bob, nil, tokenID)
	require.ErrorIs(t, err, ErrCallReverted)
	require.True(t, ex.Tokens().Exists(tokenID))

	require.NoError(t, ex.UpdateBurnParams(ctx, bob, tokenID, echoBatch(2)))
	results, err := ex.Burn(ctx, bob, nil, tokenID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(3), target.calls())

	require.False(t, ex.Tokens().Exists(tokenID))
	_, ok, err := ex.BurnActions(tokenID)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = ex.Burn(ctx, bob, nil, tokenID)
	require.ErrorIs(t, err, nft.ErrNonexistentToken)
	require.Len(t, recorder.OfType(events.TypeActionsBurned), 1)
	require.Len(t, recorder.OfType(events.TypeActionsBurnParamsSaved), 1)
}

func TestApprovedOperatorCanBurnEmptyRecord(t *testing.T) {
	ex, _, _, _ := setup(t)
	ctx := context.Background()
	tokenID, _, err := ex.Mint(ctx, alice, nil, bob, echoBatch(1), model.ActionBatch{})
	require.NoError(t, err)

	require.NoError(t, ex.Tokens().SetApprovalForAll(ctx, bob, alice, true))
	results, err := ex.Burn(ctx, alice, nil, tokenID)
	require.NoError(t, err)
	require.Empty(t, results)
}

// reentrant calls back into the executor's ledger while a mint is running.
type reentrant struct {
	state ledger.State
}

func (r reentrant) Call(ctx context.Context, msg ledger.Message) ([]byte, error) {
	return r.state.Call(ctx, ledger.Message{From: msg.To, To: echoAddr, Data: []byte("nested")})
}

func TestReentrantActionJoinsTransaction(t *testing.T) {
	ex, mem, target, _ := setup(t)
	reentrantAddr := common.HexToAddress("0x0000000000000000000000000000000000000e04")
	mem.Deploy(reentrantAddr, reentrant{state: mem})

	_, results, err := ex.Mint(context.Background(), alice, nil, bob, model.NewActionBatch(model.Action{Target: reentrantAddr}), model.ActionBatch{})
	require.NoError(t, err)
	require.Equal(t, []byte("nested"), results[0])
	require.Equal(t, uint64(1), target.calls())
}
