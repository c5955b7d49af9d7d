package broker

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolioSwap/internal/events"
	"portfolioSwap/internal/model"
)

// Buy pulls amountPaid of paymentAsset from caller, keeps the service fee and
// swaps the rest into the basket of portfolioID. The returned ownership token
// is minted to caller. Zero timeout or fee select the defaults.
func (b *Broker) Buy(ctx context.Context, caller, paymentAsset common.Address, portfolioID uint64, amountPaid *big.Int, timeout uint64, fee uint32) (uint64, error) {
	if amountPaid == nil || amountPaid.Sign() <= 0 {
		return 0, ErrPaymentZero
	}
	var tokenID uint64
	err := b.state.Apply(ctx, func(ctx context.Context) error {
		portfolio, params, err := b.prepare(ctx, portfolioID)
		if err != nil {
			return err
		}
		if err := b.state.Transfer(paymentAsset, caller, b.cfg.Address, amountPaid); err != nil {
			return fmt.Errorf("pull payment: %w", err)
		}
		invested := InvestedAmount(amountPaid, params.ServiceFeeBips)
		tokenID, err = b.purchase(ctx, caller, paymentAsset, portfolio, invested, params, timeout, fee, false)
		if err != nil {
			return err
		}
		b.emitPurchase(portfolioID, tokenID, caller, paymentAsset, amountPaid, new(big.Int))
		return nil
	})
	if err != nil {
		return 0, err
	}
	b.logger.Info("portfolio purchased",
		zap.Uint64("portfolio", portfolioID),
		zap.Uint64("token", tokenID),
		zap.String("buyer", caller.Hex()),
		zap.String("amount", amountPaid.String()),
	)
	return tokenID, nil
}

// BuyNative receives value in native form from caller and wraps only the
// invested part. The service fee is retained in native form.
func (b *Broker) BuyNative(ctx context.Context, caller common.Address, value *big.Int, portfolioID uint64, timeout uint64, fee uint32) (uint64, error) {
	if value == nil || value.Sign() <= 0 {
		return 0, ErrPaymentZero
	}
	var tokenID uint64
	err := b.state.Apply(ctx, func(ctx context.Context) error {
		portfolio, params, err := b.prepare(ctx, portfolioID)
		if err != nil {
			return err
		}
		if err := b.state.TransferNative(ctx, caller, b.cfg.Address, value); err != nil {
			return fmt.Errorf("receive native: %w", err)
		}
		invested := InvestedAmount(value, params.ServiceFeeBips)
		if err := b.wrapper.Wrap(ctx, b.cfg.Address, invested); err != nil {
			return fmt.Errorf("wrap native: %w", err)
		}
		tokenID, err = b.purchase(ctx, caller, b.wrapper.Asset(), portfolio, invested, params, timeout, fee, true)
		if err != nil {
			return err
		}
		b.emitPurchase(portfolioID, tokenID, caller, b.wrapper.Asset(), value, value)
		return nil
	})
	if err != nil {
		return 0, err
	}
	b.logger.Info("portfolio purchased with native",
		zap.Uint64("portfolio", portfolioID),
		zap.Uint64("token", tokenID),
		zap.String("buyer", caller.Hex()),
		zap.String("value", value.String()),
	)
	return tokenID, nil
}

func (b *Broker) prepare(ctx context.Context, portfolioID uint64) (model.Portfolio, Params, error) {
	registry := b.Registry()
	if registry == nil {
		return model.Portfolio{}, Params{}, fmt.Errorf("%w: no registry", ErrPortfolioMissing)
	}
	portfolio, err := registry.Portfolio(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, Params{}, fmt.Errorf("load portfolio %d: %w", portfolioID, err)
	}
	if !portfolio.Exists() {
		return model.Portfolio{}, Params{}, fmt.Errorf("%w: %d", ErrPortfolioMissing, portfolioID)
	}
	if !portfolio.Enabled {
		return model.Portfolio{}, Params{}, fmt.Errorf("%w: %d", ErrPortfolioDisabled, portfolioID)
	}
	params, err := b.Params()
	if err != nil {
		return model.Portfolio{}, Params{}, err
	}
	return portfolio, params, nil
}

func (b *Broker) purchase(ctx context.Context, caller, paymentAsset common.Address, portfolio model.Portfolio, invested *big.Int, params Params, timeout uint64, fee uint32, native bool) (uint64, error) {
	tokenID, err := b.tokens.Mint(caller)
	if err != nil {
		return 0, fmt.Errorf("mint token: %w", err)
	}
	timeout, fee = b.routing(params, timeout, fee)

	holding := model.Holding{PaidWithNative: native, Entries: make([]model.HoldingEntry, 0, len(portfolio.Shares))}
	for _, share := range portfolio.Shares {
		amount := bipsOf(invested, share.Bips)
		out, err := b.swapper.Swap(ctx, paymentAsset, share.Asset, amount, timeout, fee)
		if err != nil {
			return 0, fmt.Errorf("buy %s: %w", share.Asset.Hex(), err)
		}
		holding.Entries = append(holding.Entries, model.HoldingEntry{Asset: share.Asset, Amount: out})
	}
	if err := b.storeHolding(tokenID, holding); err != nil {
		return 0, err
	}
	return tokenID, nil
}

func (b *Broker) emitPurchase(portfolioID, tokenID uint64, buyer, paymentAsset common.Address, amount, nativeValue *big.Int) {
	b.state.Emit(events.Event{
		Type: events.TypePortfolioPurchased,
		Attributes: map[string]string{
			"portfolio_id":  strconv.FormatUint(portfolioID, 10),
			"token_id":      strconv.FormatUint(tokenID, 10),
			"buyer":         buyer.Hex(),
			"payment_asset": paymentAsset.Hex(),
			"amount":        amount.String(),
			"native_value":  nativeValue.String(),
		},
	})
}
