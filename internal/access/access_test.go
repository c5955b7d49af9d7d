package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGrantAndCheck(t *testing.T) {
	admin := common.HexToAddress("0x0000000000000000000000000000000000000001")
	manager := common.HexToAddress("0x0000000000000000000000000000000000000002")
	c := NewControl(admin)

	if err := c.Check(PortfolioManagerRole, manager); !errors.Is(err, ErrMissingRole) {
		t.Fatalf("expected missing role, got %v", err)
	}
	if err := c.Grant(manager, PortfolioManagerRole, manager); !errors.Is(err, ErrMissingRole) {
		t.Fatalf("non-admin grant should fail, got %v", err)
	}
	if err := c.Grant(admin, PortfolioManagerRole, manager); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := c.Check(PortfolioManagerRole, manager); err != nil {
		t.Fatalf("check after grant: %v", err)
	}
	if err := c.Check(AdminRole, admin); err != nil {
		t.Fatalf("default admin should pass every check: %v", err)
	}
	if err := c.Revoke(admin, PortfolioManagerRole, manager); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if c.HasRole(PortfolioManagerRole, manager) {
		t.Fatalf("role should be revoked")
	}
}

func TestRoleIDsAreDistinct(t *testing.T) {
	if AdminRole == PortfolioManagerRole || AdminRole == DefaultAdminRole {
		t.Fatalf("role ids collide")
	}
}
