// Package nft implements ownership tokens: unique, transferable ids with a
// single approved address per token and operator-for-all approvals per owner.
package nft

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"portfolioSwap/internal/events"
	"portfolioSwap/internal/ledger"
)

var (
	ErrNonexistentToken = errors.New("nft: nonexistent token")
	ErrNotAuthorized    = errors.New("nft: caller is not owner nor approved")
	ErrZeroAddress      = errors.New("nft: zero address")
	ErrIncorrectOwner   = errors.New("nft: transfer from incorrect owner")
	ErrSelfApproval     = errors.New("nft: approval to current owner")
)

// Collection is an id -> owner map with approvals, stored in the ledger.
// Token ids start at 1 and are never reused.
type Collection struct {
	state ledger.State
	name  string
}

// New returns the collection stored under name.
func New(state ledger.State, name string) *Collection {
	return &Collection{state: state, name: name}
}

// Name returns the collection namespace.
func (c *Collection) Name() string { return c.name }

// Mint assigns the next id to to.
func (c *Collection) Mint(to common.Address) (uint64, error) {
	if to == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	id := c.nextID()
	c.state.Put(c.counterKey(), idBytes(id+1))
	c.state.Put(c.ownerKey(id), to.Bytes())
	c.addBalance(to, 1)
	c.emitTransfer(common.Address{}, to, id)
	return id, nil
}

// Burn destroys id. Authorization is the caller's responsibility.
func (c *Collection) Burn(id uint64) error {
	owner, err := c.OwnerOf(id)
	if err != nil {
		return err
	}
	c.state.Delete(c.approvedKey(id))
	c.state.Delete(c.ownerKey(id))
	c.addBalance(owner, -1)
	c.emitTransfer(owner, common.Address{}, id)
	return nil
}

// Transfer moves id from from to to on behalf of caller.
func (c *Collection) Transfer(ctx context.Context, caller, from, to common.Address, id uint64) error {
	return c.state.Apply(ctx, func(ctx context.Context) error {
		if err := c.Authorize(caller, id); err != nil {
			return err
		}
		owner, err := c.OwnerOf(id)
		if err != nil {
			return err
		}
		if owner != from {
			return fmt.Errorf("%w: token %d owned by %s", ErrIncorrectOwner, id, owner.Hex())
		}
		if to == (common.Address{}) {
			return ErrZeroAddress
		}
		c.state.Delete(c.approvedKey(id))
		c.state.Put(c.ownerKey(id), to.Bytes())
		c.addBalance(from, -1)
		c.addBalance(to, 1)
		c.emitTransfer(from, to, id)
		return nil
	})
}

// Approve sets the single approved address for id. The zero address clears it.
func (c *Collection) Approve(ctx context.Context, caller, to common.Address, id uint64) error {
	return c.state.Apply(ctx, func(ctx context.Context) error {
		owner, err := c.OwnerOf(id)
		if err != nil {
			return err
		}
		if to == owner {
			return ErrSelfApproval
		}
		if caller != owner && !c.IsApprovedForAll(owner, caller) {
			return fmt.Errorf("%w: approve token %d", ErrNotAuthorized, id)
		}
		if to == (common.Address{}) {
			c.state.Delete(c.approvedKey(id))
		} else {
			c.state.Put(c.approvedKey(id), to.Bytes())
		}
		c.state.Emit(events.Event{
			Type: events.TypeTokenApproval,
			Attributes: map[string]string{
				"collection": c.name,
				"owner":      owner.Hex(),
				"approved":   to.Hex(),
				"token_id":   strconv.FormatUint(id, 10),
			},
		})
		return nil
	})
}

// SetApprovalForAll lets operator manage every token of caller.
func (c *Collection) SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error {
	return c.state.Apply(ctx, func(ctx context.Context) error {
		if operator == caller {
			return ErrSelfApproval
		}
		if approved {
			c.state.Put(c.operatorKey(caller, operator), []byte{1})
		} else {
			c.state.Delete(c.operatorKey(caller, operator))
		}
		c.state.Emit(events.Event{
			Type: events.TypeTokenApprovalForAll,
			Attributes: map[string]string{
				"collection": c.name,
				"owner":      caller.Hex(),
				"operator":   operator.Hex(),
				"approved":   strconv.FormatBool(approved),
			},
		})
		return nil
	})
}

// OwnerOf returns the owner of id.
func (c *Collection) OwnerOf(id uint64) (common.Address, error) {
	raw, ok := c.state.Get(c.ownerKey(id))
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	return common.BytesToAddress(raw), nil
}

// Exists reports whether id is currently minted.
func (c *Collection) Exists(id uint64) bool {
	_, ok := c.state.Get(c.ownerKey(id))
	return ok
}

// GetApproved returns the approved address for id, zero if none.
func (c *Collection) GetApproved(id uint64) (common.Address, error) {
	if !c.Exists(id) {
		return common.Address{}, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	raw, ok := c.state.Get(c.approvedKey(id))
	if !ok {
		return common.Address{}, nil
	}
	return common.BytesToAddress(raw), nil
}

// IsApprovedForAll reports whether operator manages all tokens of owner.
func (c *Collection) IsApprovedForAll(owner, operator common.Address) bool {
	_, ok := c.state.Get(c.operatorKey(owner, operator))
	return ok
}

// BalanceOf returns the number of tokens held by owner.
func (c *Collection) BalanceOf(owner common.Address) uint64 {
	raw, ok := c.state.Get(c.balanceKey(owner))
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// IsOwnerOrApproved reports whether spender may act on id.
func (c *Collection) IsOwnerOrApproved(spender common.Address, id uint64) (bool, error) {
	owner, err := c.OwnerOf(id)
	if err != nil {
		return false, err
	}
	if spender == owner || c.IsApprovedForAll(owner, spender) {
		return true, nil
	}
	approved, err := c.GetApproved(id)
	if err != nil {
		return false, err
	}
	return approved == spender && approved != (common.Address{}), nil
}

// Authorize returns ErrNotAuthorized unless spender may act on id.
func (c *Collection) Authorize(spender common.Address, id uint64) error {
	ok, err := c.IsOwnerOrApproved(spender, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s on token %d", ErrNotAuthorized, spender.Hex(), id)
	}
	return nil
}

func (c *Collection) nextID() uint64 {
	raw, ok := c.state.Get(c.counterKey())
	if !ok {
		return 1
	}
	return binary.BigEndian.Uint64(raw)
}

func (c *Collection) addBalance(owner common.Address, delta int64) {
	current := c.BalanceOf(owner)
	next := uint64(int64(current) + delta)
	if next == 0 {
		c.state.Delete(c.balanceKey(owner))
		return
	}
	c.state.Put(c.balanceKey(owner), idBytes(next))
}

func (c *Collection) emitTransfer(from, to common.Address, id uint64) {
	c.state.Emit(events.Event{
		Type: events.TypeTokenTransfer,
		Attributes: map[string]string{
			"collection": c.name,
			"from":       from.Hex(),
			"to":         to.Hex(),
			"token_id":   strconv.FormatUint(id, 10),
		},
	})
}
