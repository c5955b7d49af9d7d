package scenario

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"portfolioSwap/internal/events"
	"portfolioSwap/internal/model"
)

const nativeAsset = "native"

// StepResult records the outcome of one step.
type StepResult struct {
	Index   int    `json:"index"`
	Action  string `json:"action"`
	Account string `json:"account,omitempty"`
	TokenID uint64 `json:"token_id,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report is the outcome of a scenario run.
type Report struct {
	Steps    []StepResult `json:"steps"`
	Balances []Balance    `json:"balances"`
}

// Runner replays scenario steps against a World.
type Runner struct {
	params  Params
	emitter events.Emitter
	logger  *zap.Logger

	world       *World
	lastToken   map[string]uint64
	lastActions map[string]uint64
}

// NewRunner builds a Runner. Committed events are delivered to emitter.
func NewRunner(params Params, emitter events.Emitter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{params: params, emitter: emitter, logger: logger}
}

// World returns the world built by the last Run.
func (r *Runner) World() *World {
	return r.world
}

// Run builds the world described by file and executes its steps in order. A
// step marked expect_error must fail; any other failure aborts the run.
func (r *Runner) Run(ctx context.Context, file File) (Report, error) {
	world, err := Build(ctx, file, r.params, r.emitter, r.logger)
	if err != nil {
		return Report{}, fmt.Errorf("build world: %w", err)
	}
	r.world = world
	r.lastToken = make(map[string]uint64)
	r.lastActions = make(map[string]uint64)

	var report Report
	for i, step := range file.Steps {
		result, err := r.step(ctx, step)
		result.Index = i
		result.Action = step.Action
		result.Account = step.Account
		if err != nil {
			result.Error = err.Error()
		}
		report.Steps = append(report.Steps, result)

		switch {
		case err != nil && !step.ExpectError:
			return report, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		case err == nil && step.ExpectError:
			return report, fmt.Errorf("step %d (%s): expected failure", i, step.Action)
		}
		r.logger.Info("scenario step",
			zap.Int("index", i),
			zap.String("action", step.Action),
			zap.String("account", step.Account),
			zap.Uint64("token", result.TokenID),
			zap.String("amount", result.Amount),
			zap.String("error", result.Error),
		)
	}
	report.Balances = world.Balances()
	return report, nil
}

func (r *Runner) step(ctx context.Context, step Step) (StepResult, error) {
	w := r.world
	var result StepResult
	caller, err := w.Account(step.Account)
	if err != nil {
		return result, err
	}
	account := strings.ToLower(step.Account)

	switch step.Action {
	case "buy":
		asset, err := w.Token(step.Asset)
		if err != nil {
			return result, err
		}
		amount, err := w.parseTokenAmount(step.Asset, step.Amount)
		if err != nil {
			return result, err
		}
		id, err := w.Broker.Buy(ctx, caller, asset, step.Portfolio, amount, step.Timeout, step.Fee)
		if err != nil {
			return result, err
		}
		r.lastToken[account] = id
		result.TokenID, result.Amount = id, step.Amount

	case "buy_native":
		value, err := ParseAmount(step.Amount, NativeDecimals)
		if err != nil {
			return result, err
		}
		id, err := w.Broker.BuyNative(ctx, caller, value, step.Portfolio, step.Timeout, step.Fee)
		if err != nil {
			return result, err
		}
		r.lastToken[account] = id
		result.TokenID, result.Amount = id, step.Amount

	case "sell":
		asset, err := w.Token(step.Asset)
		if err != nil {
			return result, err
		}
		id := r.token(step.Token, r.lastToken, account)
		out, err := w.Broker.Sell(ctx, caller, asset, id, step.Timeout, step.Fee)
		if err != nil {
			return result, err
		}
		result.TokenID, result.Amount = id, FormatAmount(out, w.decimals(step.Asset))

	case "approve", "transfer":
		to, err := w.Account(step.To)
		if err != nil {
			return result, err
		}
		id := r.token(step.Token, r.lastToken, account)
		if step.Action == "approve" {
			err = w.Broker.Tokens().Approve(ctx, caller, to, id)
		} else {
			err = w.Broker.Tokens().Transfer(ctx, caller, caller, to, id)
			if err == nil {
				r.lastToken[strings.ToLower(step.To)] = id
			}
		}
		if err != nil {
			return result, err
		}
		result.TokenID = id

	case "update_fee":
		if err := w.Broker.UpdateServiceFee(ctx, caller, step.Bips); err != nil {
			return result, err
		}

	case "update_lookback":
		if err := w.Broker.UpdateLookbackWindow(ctx, caller, step.Seconds); err != nil {
			return result, err
		}

	case "withdraw_all":
		receiver, err := w.Account(step.To)
		if err != nil {
			return result, err
		}
		if strings.EqualFold(step.Asset, nativeAsset) {
			err = w.Broker.WithdrawNativeAll(ctx, caller, receiver)
		} else {
			var asset common.Address
			asset, err = w.Token(step.Asset)
			if err == nil {
				err = w.Broker.WithdrawAll(ctx, caller, asset, receiver)
			}
		}
		if err != nil {
			return result, err
		}

	case "mint":
		to, err := w.Account(step.To)
		if err != nil {
			return result, err
		}
		mintBatch, err := r.batch(step.Calls)
		if err != nil {
			return result, err
		}
		burnBatch, err := r.batch(step.BurnCalls)
		if err != nil {
			return result, err
		}
		value, err := optionalNative(step.Amount)
		if err != nil {
			return result, err
		}
		id, _, err := w.Executor.Mint(ctx, caller, value, to, mintBatch, burnBatch)
		if err != nil {
			return result, err
		}
		r.lastActions[strings.ToLower(step.To)] = id
		result.TokenID = id

	case "update_burn":
		burnBatch, err := r.batch(step.BurnCalls)
		if err != nil {
			return result, err
		}
		id := r.token(step.Token, r.lastActions, account)
		if err := w.Executor.UpdateBurnParams(ctx, caller, id, burnBatch); err != nil {
			return result, err
		}
		result.TokenID = id

	case "burn":
		value, err := optionalNative(step.Amount)
		if err != nil {
			return result, err
		}
		id := r.token(step.Token, r.lastActions, account)
		if _, err := w.Executor.Burn(ctx, caller, value, id); err != nil {
			return result, err
		}
		result.TokenID = id

	default:
		return result, fmt.Errorf("unknown action %q", step.Action)
	}
	return result, nil
}

func (r *Runner) token(explicit uint64, last map[string]uint64, account string) uint64 {
	if explicit != 0 {
		return explicit
	}
	return last[account]
}

func (r *Runner) batch(calls []Call) (model.ActionBatch, error) {
	actions := make([]model.Action, 0, len(calls))
	for i, call := range calls {
		target, err := r.world.Resolve(call.Target)
		if err != nil {
			return model.ActionBatch{}, fmt.Errorf("call %d: %w", i, err)
		}
		value, err := optionalNative(call.Value)
		if err != nil {
			return model.ActionBatch{}, fmt.Errorf("call %d: %w", i, err)
		}
		var payload []byte
		if call.Payload != "" {
			payload, err = hexutil.Decode(call.Payload)
			if err != nil {
				return model.ActionBatch{}, fmt.Errorf("call %d payload: %w", i, err)
			}
		}
		actions = append(actions, model.Action{Target: target, Value: value, Signature: call.Signature, Payload: payload})
	}
	return model.NewActionBatch(actions...), nil
}

func optionalNative(amount string) (*big.Int, error) {
	if strings.TrimSpace(amount) == "" {
		return new(big.Int), nil
	}
	return ParseAmount(amount, NativeDecimals)
}
