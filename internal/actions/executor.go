// Package actions mints ownership tokens whose mint and burn each run a
// caller-supplied batch of external calls.
package actions

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"portfolioSwap/internal/events"
	"portfolioSwap/internal/ledger"
	"portfolioSwap/internal/model"
	"portfolioSwap/internal/nft"
)

// MaxActions bounds every action batch.
const MaxActions = 12

var (
	ErrArrayMismatch     = errors.New("actions: array length mismatch")
	ErrNoActions         = errors.New("actions: no actions")
	ErrTooManyOperations = errors.New("actions: too many operations")
	ErrCallReverted      = errors.New("actions: call reverted")
	ErrNotAuthorized     = nft.ErrNotAuthorized
)

var recordPrefix = []byte("actions/record/")

// Config configures an Executor.
type Config struct {
	// Address is the executor account: it receives attached value and is the
	// sender of every action.
	Address common.Address
	// Collection names the ownership token namespace.
	Collection string
}

// Executor runs action batches on mint and burn.
type Executor struct {
	cfg    Config
	state  ledger.State
	tokens *nft.Collection
	logger *zap.Logger
}

// New builds an Executor with its dependencies.
func New(cfg Config, state ledger.State, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "actions"
	}
	return &Executor{cfg: cfg, state: state, tokens: nft.New(state, cfg.Collection), logger: logger}
}

// Address returns the executor account.
func (e *Executor) Address() common.Address {
	return e.cfg.Address
}

// Tokens returns the ownership token collection.
func (e *Executor) Tokens() *nft.Collection {
	return e.tokens
}

// Selector returns the 4-byte function selector of a canonical signature.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// EncodeCall builds call data: the payload alone when signature is empty,
// otherwise the selector followed by the payload.
func EncodeCall(signature string, payload []byte) []byte {
	if signature == "" {
		return common.CopyBytes(payload)
	}
	sel := Selector(signature)
	return append(sel[:], payload...)
}

// Validate checks a batch for shape. allowEmpty admits a zero-length batch.
func Validate(batch model.ActionBatch, allowEmpty bool) error {
	if !batch.Balanced() {
		return fmt.Errorf("%w: %d targets, %d values, %d signatures, %d payloads", ErrArrayMismatch,
			len(batch.Targets), len(batch.Values), len(batch.Signatures), len(batch.Payloads))
	}
	if batch.Len() == 0 && !allowEmpty {
		return ErrNoActions
	}
	if batch.Len() > MaxActions {
		return fmt.Errorf("%w: %d > %d", ErrTooManyOperations, batch.Len(), MaxActions)
	}
	return nil
}

// Mint receives value from caller, mints a token to to, stores burnBatch for
// that token and runs mintBatch in order. It returns the token id and the
// return data of every mint action.
func (e *Executor) Mint(ctx context.Context, caller common.Address, value *big.Int, to common.Address, mintBatch, burnBatch model.ActionBatch) (uint64, [][]byte, error) {
	if err := Validate(mintBatch, false); err != nil {
		return 0, nil, fmt.Errorf("mint batch: %w", err)
	}
	if err := Validate(burnBatch, true); err != nil {
		return 0, nil, fmt.Errorf("burn batch: %w", err)
	}

	var (
		tokenID uint64
		results [][]byte
	)
	err := e.state.Apply(ctx, func(ctx context.Context) error {
		if err := e.state.TransferNative(ctx, caller, e.cfg.Address, value); err != nil {
			return fmt.Errorf("receive value: %w", err)
		}
		var err error
		tokenID, err = e.tokens.Mint(to)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		if err := e.storeRecord(tokenID, burnBatch); err != nil {
			return err
		}
		results, err = e.execute(ctx, mintBatch)
		if err != nil {
			return err
		}
		e.emit(events.TypeActionsMinted, tokenID, to, mintBatch.Len())
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	e.logger.Info("actions minted", zap.Uint64("token", tokenID), zap.String("to", to.Hex()), zap.Int("actions", mintBatch.Len()))
	return tokenID, results, nil
}

// Burn destroys tokenID on behalf of its owner or an approved caller and runs
// the stored burn batch.
func (e *Executor) Burn(ctx context.Context, caller common.Address, value *big.Int, tokenID uint64) ([][]byte, error) {
	var results [][]byte
	err := e.state.Apply(ctx, func(ctx context.Context) error {
		if err := e.tokens.Authorize(caller, tokenID); err != nil {
			return err
		}
		if err := e.state.TransferNative(ctx, caller, e.cfg.Address, value); err != nil {
			return fmt.Errorf("receive value: %w", err)
		}
		owner, err := e.tokens.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if err := e.tokens.Burn(tokenID); err != nil {
			return fmt.Errorf("burn token: %w", err)
		}
		batch, _, err := e.BurnActions(tokenID)
		if err != nil {
			return err
		}
		e.state.Delete(recordKey(tokenID))
		results, err = e.execute(ctx, batch)
		if err != nil {
			return err
		}
		e.emit(events.TypeActionsBurned, tokenID, owner, batch.Len())
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("actions burned", zap.Uint64("token", tokenID), zap.String("caller", caller.Hex()), zap.Int("actions", len(results)))
	return results, nil
}

// UpdateBurnParams replaces the batch run when tokenID is burned.
func (e *Executor) UpdateBurnParams(ctx context.Context, caller common.Address, tokenID uint64, batch model.ActionBatch) error {
	if err := Validate(batch, true); err != nil {
		return fmt.Errorf("burn batch: %w", err)
	}
	return e.state.Apply(ctx, func(ctx context.Context) error {
		if err := e.tokens.Authorize(caller, tokenID); err != nil {
			return err
		}
		if err := e.storeRecord(tokenID, batch); err != nil {
			return err
		}
		e.emit(events.TypeActionsBurnParamsSaved, tokenID, caller, batch.Len())
		return nil
	})
}

// BurnActions returns the batch stored for tokenID.
func (e *Executor) BurnActions(tokenID uint64) (model.ActionBatch, bool, error) {
	raw, ok := e.state.Get(recordKey(tokenID))
	if !ok {
		return model.ActionBatch{}, false, nil
	}
	var batch model.ActionBatch
	if err := rlp.DecodeBytes(raw, &batch); err != nil {
		return model.ActionBatch{}, false, fmt.Errorf("decode record %d: %w", tokenID, err)
	}
	return batch, true, nil
}

func (e *Executor) storeRecord(tokenID uint64, batch model.ActionBatch) error {
	encoded, err := rlp.EncodeToBytes(batch)
	if err != nil {
		return fmt.Errorf("encode record %d: %w", tokenID, err)
	}
	e.state.Put(recordKey(tokenID), encoded)
	return nil
}

func recordKey(tokenID uint64) []byte {
	return strconv.AppendUint(append([]byte{}, recordPrefix...), tokenID, 10)
}

func (e *Executor) execute(ctx context.Context, batch model.ActionBatch) ([][]byte, error) {
	results := make([][]byte, 0, batch.Len())
	for i, action := range batch.Actions() {
		ret, err := e.state.Call(ctx, ledger.Message{
			From:  e.cfg.Address,
			To:    action.Target,
			Value: action.Value,
			Data:  EncodeCall(action.Signature, action.Payload),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: action %d to %s: %w", ErrCallReverted, i, action.Target.Hex(), err)
		}
		e.logger.Debug("action executed", zap.Int("index", i), zap.String("target", action.Target.Hex()))
		results = append(results, ret)
	}
	return results, nil
}

func (e *Executor) emit(eventType string, tokenID uint64, account common.Address, count int) {
	e.state.Emit(events.Event{
		Type: eventType,
		Attributes: map[string]string{
			"token_id": strconv.FormatUint(tokenID, 10),
			"account":  account.Hex(),
			"actions":  strconv.Itoa(count),
		},
	})
}
