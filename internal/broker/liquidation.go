package broker

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolioSwap/internal/events"
)

// Sell liquidates the basket behind tokenID into assetOut and pays the
// proceeds to caller. Selling into the wrapped native asset pays out native.
// The token and its holding are removed before any swap runs.
func (b *Broker) Sell(ctx context.Context, caller, assetOut common.Address, tokenID uint64, timeout uint64, fee uint32) (*big.Int, error) {
	total := new(big.Int)
	err := b.state.Apply(ctx, func(ctx context.Context) error {
		if err := b.tokens.Authorize(caller, tokenID); err != nil {
			return err
		}
		holding, ok, err := b.Holding(tokenID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: token %d", ErrHoldingMissing, tokenID)
		}
		params, err := b.Params()
		if err != nil {
			return err
		}

		if err := b.tokens.Burn(tokenID); err != nil {
			return fmt.Errorf("burn token: %w", err)
		}
		b.state.Delete(holdingKey(tokenID))

		timeout, fee := b.routing(params, timeout, fee)
		for _, entry := range holding.Entries {
			out, err := b.swapper.Swap(ctx, entry.Asset, assetOut, entry.Amount, timeout, fee)
			if err != nil {
				return fmt.Errorf("sell %s: %w", entry.Asset.Hex(), err)
			}
			total.Add(total, out)
		}

		if b.wrapper != nil && assetOut == b.wrapper.Asset() {
			if err := b.wrapper.Unwrap(ctx, b.cfg.Address, total); err != nil {
				return fmt.Errorf("unwrap: %w", err)
			}
			if err := b.state.TransferNative(ctx, b.cfg.Address, caller, total); err != nil {
				return fmt.Errorf("%w: %w", ErrNativeTransferFailed, err)
			}
		} else if err := b.state.Transfer(assetOut, b.cfg.Address, caller, total); err != nil {
			return fmt.Errorf("pay out: %w", err)
		}

		b.state.Emit(events.Event{
			Type: events.TypePortfolioSold,
			Attributes: map[string]string{
				"token_id":  strconv.FormatUint(tokenID, 10),
				"seller":    caller.Hex(),
				"asset_out": assetOut.Hex(),
				"amount":    total.String(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.logger.Info("portfolio sold",
		zap.Uint64("token", tokenID),
		zap.String("seller", caller.Hex()),
		zap.String("asset_out", assetOut.Hex()),
		zap.String("amount", total.String()),
	)
	return total, nil
}
