package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrMissingRole = errors.New("access: caller is missing role")
	ErrZeroAccount = errors.New("access: zero account")
)

// Role identifies a permission. Named roles are the keccak256 of their name;
// the default admin role is the zero hash and administers every role.
type Role common.Hash

var (
	DefaultAdminRole     = Role{}
	AdminRole            = NewRole("ADMIN_ROLE")
	PortfolioManagerRole = NewRole("PORTFOLIO_MANAGER_ROLE")
)

// NewRole derives a role id from its name.
func NewRole(name string) Role {
	return Role(crypto.Keccak256Hash([]byte(name)))
}

func (r Role) String() string {
	return common.Hash(r).Hex()
}

// Control is the permission set attached to a single engine instance. Every
// mutating entry point passes the caller explicitly.
type Control struct {
	mu      sync.RWMutex
	members map[Role]map[common.Address]struct{}
}

// NewControl grants the default admin role to admin.
func NewControl(admin common.Address) *Control {
	c := &Control{members: make(map[Role]map[common.Address]struct{})}
	if admin != (common.Address{}) {
		c.grant(DefaultAdminRole, admin)
	}
	return c
}

// HasRole reports whether account holds role.
func (c *Control) HasRole(role Role, account common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[role][account]
	return ok
}

// Check returns ErrMissingRole unless caller holds role or the default admin role.
func (c *Control) Check(role Role, caller common.Address) error {
	if c.HasRole(role, caller) || c.HasRole(DefaultAdminRole, caller) {
		return nil
	}
	return fmt.Errorf("%w %s: %s", ErrMissingRole, role, caller.Hex())
}

// Grant gives role to account. Only the default admin may grant.
func (c *Control) Grant(caller common.Address, role Role, account common.Address) error {
	if err := c.checkAdmin(caller); err != nil {
		return err
	}
	if account == (common.Address{}) {
		return ErrZeroAccount
	}
	c.grant(role, account)
	return nil
}

// Revoke removes role from account. Only the default admin may revoke.
func (c *Control) Revoke(caller common.Address, role Role, account common.Address) error {
	if err := c.checkAdmin(caller); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.members[role], account)
	c.mu.Unlock()
	return nil
}

// Renounce drops one of the caller's own roles.
func (c *Control) Renounce(caller common.Address, role Role) {
	c.mu.Lock()
	delete(c.members[role], caller)
	c.mu.Unlock()
}

func (c *Control) checkAdmin(caller common.Address) error {
	if !c.HasRole(DefaultAdminRole, caller) {
		return fmt.Errorf("%w %s: %s", ErrMissingRole, DefaultAdminRole, caller.Hex())
	}
	return nil
}

func (c *Control) grant(role Role, account common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.members[role]
	if !ok {
		set = make(map[common.Address]struct{})
		c.members[role] = set
	}
	set[account] = struct{}{}
}
