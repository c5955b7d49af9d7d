// Package registry stores the weighted baskets that the broker sells.
package registry

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"portfolioSwap/internal/access"
	"portfolioSwap/internal/dex"
	"portfolioSwap/internal/events"
	"portfolioSwap/internal/ledger"
	"portfolioSwap/internal/model"
)

var (
	ErrEmptyBasket     = errors.New("registry: empty basket")
	ErrTotalShares     = errors.New("registry: shares must sum to 10000 bips")
	ErrZeroAsset       = errors.New("registry: zero asset")
	ErrDuplicateAsset  = errors.New("registry: duplicate asset")
	ErrNotFound        = errors.New("registry: portfolio not found")
	ErrAlreadyEnabled  = errors.New("registry: portfolio already enabled")
	ErrAlreadyDisabled = errors.New("registry: portfolio already disabled")
)

var (
	portfolioPrefix = []byte("registry/portfolio/")
	countKey        = []byte("registry/count")
)

// Config configures a Registry.
type Config struct {
	// Address identifies the registry instance to its consumers.
	Address common.Address
	// Anchor is the asset every basket asset must have a pool against.
	Anchor common.Address
	// FeeTiers are the fee tiers searched for an anchor pool.
	FeeTiers []uint32
}

// Registry keeps portfolios keyed by id. Ids start at 1.
type Registry struct {
	cfg     Config
	state   ledger.State
	pools   dex.PoolLookup
	control *access.Control
	logger  *zap.Logger
}

// New builds a Registry with its dependencies.
func New(cfg Config, state ledger.State, pools dex.PoolLookup, control *access.Control, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = []uint32{500, 3000, 10000}
	}
	return &Registry{cfg: cfg, state: state, pools: pools, control: control, logger: logger}
}

// Address returns the registry address.
func (r *Registry) Address() common.Address {
	return r.cfg.Address
}

// Count returns the number of registered portfolios.
func (r *Registry) Count() uint64 {
	raw, ok := r.state.Get(countKey)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// Add registers a new portfolio, enabled, and returns its id.
func (r *Registry) Add(ctx context.Context, caller common.Address, shares []model.Share) (uint64, error) {
	var id uint64
	err := r.state.Apply(ctx, func(ctx context.Context) error {
		if err := r.control.Check(access.PortfolioManagerRole, caller); err != nil {
			return err
		}
		if err := r.validate(ctx, shares); err != nil {
			return err
		}
		id = r.Count() + 1
		r.state.Put(countKey, binary.BigEndian.AppendUint64(nil, id))
		if err := r.store(model.Portfolio{ID: id, Enabled: true, Shares: shares}); err != nil {
			return err
		}
		r.emit(events.TypePortfolioAdded, id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("portfolio added", zap.Uint64("id", id), zap.Int("assets", len(shares)))
	return id, nil
}

// Update replaces the basket of an existing portfolio.
func (r *Registry) Update(ctx context.Context, caller common.Address, id uint64, shares []model.Share) error {
	return r.state.Apply(ctx, func(ctx context.Context) error {
		if err := r.control.Check(access.PortfolioManagerRole, caller); err != nil {
			return err
		}
		portfolio, err := r.mustLoad(id)
		if err != nil {
			return err
		}
		if err := r.validate(ctx, shares); err != nil {
			return err
		}
		portfolio.Shares = shares
		if err := r.store(portfolio); err != nil {
			return err
		}
		r.emit(events.TypePortfolioUpdated, id)
		return nil
	})
}

// Enable re-opens a disabled portfolio for purchase.
func (r *Registry) Enable(ctx context.Context, caller common.Address, id uint64) error {
	return r.setEnabled(ctx, caller, id, true)
}

// Disable closes a portfolio for purchase. Existing holdings can still be sold.
func (r *Registry) Disable(ctx context.Context, caller common.Address, id uint64) error {
	return r.setEnabled(ctx, caller, id, false)
}

func (r *Registry) setEnabled(ctx context.Context, caller common.Address, id uint64, enabled bool) error {
	return r.state.Apply(ctx, func(ctx context.Context) error {
		if err := r.control.Check(access.PortfolioManagerRole, caller); err != nil {
			return err
		}
		portfolio, err := r.mustLoad(id)
		if err != nil {
			return err
		}
		if portfolio.Enabled == enabled {
			if enabled {
				return fmt.Errorf("%w: %d", ErrAlreadyEnabled, id)
			}
			return fmt.Errorf("%w: %d", ErrAlreadyDisabled, id)
		}
		portfolio.Enabled = enabled
		if err := r.store(portfolio); err != nil {
			return err
		}
		if enabled {
			r.emit(events.TypePortfolioEnabled, id)
		} else {
			r.emit(events.TypePortfolioDisabled, id)
		}
		return nil
	})
}

// Portfolio returns the portfolio stored under id. An unknown id yields the
// zero Portfolio, whose Exists reports false.
func (r *Registry) Portfolio(_ context.Context, id uint64) (model.Portfolio, error) {
	portfolio, ok, err := r.load(id)
	if err != nil || !ok {
		return model.Portfolio{}, err
	}
	return portfolio, nil
}

// All returns every registered portfolio in id order.
func (r *Registry) All(ctx context.Context) ([]model.Portfolio, error) {
	count := r.Count()
	out := make([]model.Portfolio, 0, count)
	for id := uint64(1); id <= count; id++ {
		portfolio, err := r.Portfolio(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, portfolio)
	}
	return out, nil
}

func (r *Registry) validate(ctx context.Context, shares []model.Share) error {
	if len(shares) == 0 {
		return ErrEmptyBasket
	}
	seen := make(map[common.Address]struct{}, len(shares))
	for _, share := range shares {
		if share.Asset == (common.Address{}) {
			return ErrZeroAsset
		}
		if _, dup := seen[share.Asset]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, share.Asset.Hex())
		}
		seen[share.Asset] = struct{}{}
		if share.Bips > model.BipsScale {
			return fmt.Errorf("%w: share %s has %d bips", ErrTotalShares, share.Asset.Hex(), share.Bips)
		}
	}
	if total := model.TotalBips(shares); total != model.BipsScale {
		return fmt.Errorf("%w: got %d", ErrTotalShares, total)
	}
	for _, share := range shares {
		if err := r.checkAnchorPool(ctx, share.Asset); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) checkAnchorPool(ctx context.Context, asset common.Address) error {
	if asset == r.cfg.Anchor {
		return nil
	}
	for _, fee := range r.cfg.FeeTiers {
		_, ok, err := r.pools.GetPool(ctx, asset, r.cfg.Anchor, fee)
		if err != nil {
			return fmt.Errorf("lookup pool: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no pool against anchor %s", dex.ErrPoolMissing, asset.Hex(), r.cfg.Anchor.Hex())
}

func portfolioKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, portfolioPrefix...), id)
}

func (r *Registry) load(id uint64) (model.Portfolio, bool, error) {
	raw, ok := r.state.Get(portfolioKey(id))
	if !ok {
		return model.Portfolio{}, false, nil
	}
	var portfolio model.Portfolio
	if err := rlp.DecodeBytes(raw, &portfolio); err != nil {
		return model.Portfolio{}, false, fmt.Errorf("decode portfolio %d: %w", id, err)
	}
	return portfolio, true, nil
}

func (r *Registry) mustLoad(id uint64) (model.Portfolio, error) {
	portfolio, ok, err := r.load(id)
	if err != nil {
		return model.Portfolio{}, err
	}
	if !ok {
		return model.Portfolio{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return portfolio, nil
}

func (r *Registry) store(portfolio model.Portfolio) error {
	encoded, err := rlp.EncodeToBytes(portfolio)
	if err != nil {
		return fmt.Errorf("encode portfolio %d: %w", portfolio.ID, err)
	}
	r.state.Put(portfolioKey(portfolio.ID), encoded)
	return nil
}

func (r *Registry) emit(eventType string, id uint64) {
	r.state.Emit(events.Event{
		Type:       eventType,
		Attributes: map[string]string{"portfolio_id": strconv.FormatUint(id, 10)},
	})
}
