package broker

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolioSwap/internal/access"
	"portfolioSwap/internal/events"
	"portfolioSwap/internal/model"
)

// SetRegistry points the broker at a different portfolio registry.
func (b *Broker) SetRegistry(ctx context.Context, caller common.Address, registry Registry) error {
	err := b.state.Apply(ctx, func(ctx context.Context) error {
		if err := b.control.Check(access.AdminRole, caller); err != nil {
			return err
		}
		if registry == nil || registry.Address() == (common.Address{}) {
			return ErrZeroAddress
		}
		if current := b.Registry(); current != nil && current.Address() == registry.Address() {
			return fmt.Errorf("%w: registry %s", ErrNoChange, registry.Address().Hex())
		}
		b.state.Emit(events.Event{
			Type:       events.TypeRegistryUpdated,
			Attributes: map[string]string{"registry": registry.Address().Hex()},
		})
		return nil
	})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.registry = registry
	b.mu.Unlock()
	b.logger.Info("registry updated", zap.String("registry", registry.Address().Hex()))
	return nil
}

// UpdateLookbackWindow sets the quote window used by EstimateMinimumOut.
func (b *Broker) UpdateLookbackWindow(ctx context.Context, caller common.Address, seconds uint64) error {
	return b.updateParams(ctx, caller, func(params *Params) error {
		if seconds < MinLookbackSeconds {
			return fmt.Errorf("%w: %d", ErrLookbackTooShort, seconds)
		}
		if params.LookbackSeconds == seconds {
			return fmt.Errorf("%w: lookback %d", ErrNoChange, seconds)
		}
		params.LookbackSeconds = seconds
		b.state.Emit(events.Event{
			Type:       events.TypeLookbackUpdated,
			Attributes: map[string]string{"seconds": strconv.FormatUint(seconds, 10)},
		})
		return nil
	})
}

// UpdateServiceFee sets the fee retained on every purchase.
func (b *Broker) UpdateServiceFee(ctx context.Context, caller common.Address, bips uint64) error {
	return b.updateParams(ctx, caller, func(params *Params) error {
		if bips > model.BipsScale {
			return fmt.Errorf("%w: %d", ErrFeeTooHigh, bips)
		}
		if params.ServiceFeeBips == bips {
			return fmt.Errorf("%w: service fee %d", ErrNoChange, bips)
		}
		params.ServiceFeeBips = bips
		b.state.Emit(events.Event{
			Type:       events.TypeServiceFeeUpdated,
			Attributes: map[string]string{"bips": strconv.FormatUint(bips, 10)},
		})
		return nil
	})
}

func (b *Broker) updateParams(ctx context.Context, caller common.Address, mutate func(*Params) error) error {
	return b.state.Apply(ctx, func(ctx context.Context) error {
		if err := b.control.Check(access.AdminRole, caller); err != nil {
			return err
		}
		params, err := b.Params()
		if err != nil {
			return err
		}
		if err := mutate(&params); err != nil {
			return err
		}
		return b.storeParams(params)
	})
}

// Withdraw sends amount of asset held by the broker to receiver.
func (b *Broker) Withdraw(ctx context.Context, caller, asset, receiver common.Address, amount *big.Int) error {
	return b.withdraw(ctx, caller, asset, receiver, func(ctx context.Context) (*big.Int, error) {
		return amount, b.state.Transfer(asset, b.cfg.Address, receiver, amount)
	})
}

// WithdrawAll sends the broker's full balance of asset to receiver.
func (b *Broker) WithdrawAll(ctx context.Context, caller, asset, receiver common.Address) error {
	return b.withdraw(ctx, caller, asset, receiver, func(ctx context.Context) (*big.Int, error) {
		amount := b.state.BalanceOf(asset, b.cfg.Address)
		return amount, b.state.Transfer(asset, b.cfg.Address, receiver, amount)
	})
}

// WithdrawNative sends amount of the broker's native balance to receiver.
func (b *Broker) WithdrawNative(ctx context.Context, caller, receiver common.Address, amount *big.Int) error {
	return b.withdraw(ctx, caller, common.Address{}, receiver, func(ctx context.Context) (*big.Int, error) {
		return amount, b.nativePayout(ctx, receiver, amount)
	})
}

// WithdrawNativeAll sends the broker's full native balance to receiver.
func (b *Broker) WithdrawNativeAll(ctx context.Context, caller, receiver common.Address) error {
	return b.withdraw(ctx, caller, common.Address{}, receiver, func(ctx context.Context) (*big.Int, error) {
		amount := b.state.NativeBalance(b.cfg.Address)
		return amount, b.nativePayout(ctx, receiver, amount)
	})
}

func (b *Broker) nativePayout(ctx context.Context, receiver common.Address, amount *big.Int) error {
	if err := b.state.TransferNative(ctx, b.cfg.Address, receiver, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrNativeTransferFailed, err)
	}
	return nil
}

// withdraw runs move under the admin role. A zero asset denotes native.
func (b *Broker) withdraw(ctx context.Context, caller, asset, receiver common.Address, move func(context.Context) (*big.Int, error)) error {
	return b.state.Apply(ctx, func(ctx context.Context) error {
		if err := b.control.Check(access.AdminRole, caller); err != nil {
			return err
		}
		if receiver == (common.Address{}) {
			return ErrZeroAddress
		}
		amount, err := move(ctx)
		if err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		b.state.Emit(events.Event{
			Type: events.TypeWithdrawn,
			Attributes: map[string]string{
				"asset":    asset.Hex(),
				"receiver": receiver.Hex(),
				"amount":   amount.String(),
			},
		})
		return nil
	})
}
