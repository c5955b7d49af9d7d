package registry

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"portfolioSwap/internal/access"
	"portfolioSwap/internal/amm"
	"portfolioSwap/internal/dex"
	"portfolioSwap/internal/events"
	"portfolioSwap/internal/ledger"
	"portfolioSwap/internal/model"
)

var (
	admin   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	manager = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	anyone  = common.HexToAddress("0x0000000000000000000000000000000000000a03")

	anchor = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	orphan = common.HexToAddress("0x00000000000000000000000000000000000000b9")
)

func newRegistry(t *testing.T) (*Registry, *events.Recorder) {
	t.Helper()
	ctx := context.Background()
	recorder := &events.Recorder{}
	mem := ledger.NewMemory(recorder, nil)
	ex := amm.NewExchange(mem, nil)
	for _, token := range []common.Address{tokenA, tokenB} {
		_, err := ex.CreatePool(ctx, anchor, token, 3000)
		require.NoError(t, err)
	}
	control := access.NewControl(admin)
	require.NoError(t, control.Grant(admin, access.PortfolioManagerRole, manager))
	reg := New(Config{Anchor: anchor, FeeTiers: []uint32{3000}}, mem, ex, control, nil)
	return reg, recorder
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	reg, recorder := newRegistry(t)
	ctx := context.Background()

	id, err := reg.Add(ctx, manager, []model.Share{{Asset: tokenA, Bips: 6000}, {Asset: tokenB, Bips: 4000}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	id, err = reg.Add(ctx, manager, []model.Share{{Asset: anchor, Bips: 10000}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)

	portfolio, err := reg.Portfolio(ctx, 1)
	require.NoError(t, err)
	require.True(t, portfolio.Exists())
	require.True(t, portfolio.Enabled)
	require.Equal(t, model.BipsScale, model.TotalBips(portfolio.Shares))
	require.Len(t, recorder.OfType(events.TypePortfolioAdded), 2)
}

func TestAddRejectsInvalidBaskets(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		shares []model.Share
		want   error
	}{
		{"empty", nil, ErrEmptyBasket},
		{"short", []model.Share{{Asset: tokenA, Bips: 5000}, {Asset: tokenB, Bips: 4999}}, ErrTotalShares},
		{"over", []model.Share{{Asset: tokenA, Bips: 5000}, {Asset: tokenB, Bips: 5001}}, ErrTotalShares},
		{"wrapping sum", []model.Share{{Asset: tokenA, Bips: math.MaxUint64}, {Asset: tokenB, Bips: 10001}}, ErrTotalShares},
		{"zero asset", []model.Share{{Bips: 10000}}, ErrZeroAsset},
		{"duplicate", []model.Share{{Asset: tokenA, Bips: 5000}, {Asset: tokenA, Bips: 5000}}, ErrDuplicateAsset},
		{"no anchor pool", []model.Share{{Asset: orphan, Bips: 10000}}, dex.ErrPoolMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Add(ctx, manager, tc.shares)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Zero(t, reg.Count())
	portfolio, err := reg.Portfolio(ctx, 1)
	require.NoError(t, err)
	require.False(t, portfolio.Exists())
}

func TestRoleRequired(t *testing.T) {
	reg, _ := newRegistry(t)
	_, err := reg.Add(context.Background(), anyone, []model.Share{{Asset: tokenA, Bips: 10000}})
	require.ErrorIs(t, err, access.ErrMissingRole)
}

func TestEnableDisableToggle(t *testing.T) {
	reg, recorder := newRegistry(t)
	ctx := context.Background()
	id, err := reg.Add(ctx, manager, []model.Share{{Asset: tokenA, Bips: 10000}})
	require.NoError(t, err)

	require.ErrorIs(t, reg.Enable(ctx, manager, id), ErrAlreadyEnabled)
	require.NoError(t, reg.Disable(ctx, manager, id))
	require.ErrorIs(t, reg.Disable(ctx, manager, id), ErrAlreadyDisabled)

	portfolio, err := reg.Portfolio(ctx, id)
	require.NoError(t, err)
	require.False(t, portfolio.Enabled)

	require.NoError(t, reg.Enable(ctx, manager, id))
	require.ErrorIs(t, reg.Disable(ctx, manager, 42), ErrNotFound)
	require.Len(t, recorder.OfType(events.TypePortfolioDisabled), 1)
	require.Len(t, recorder.OfType(events.TypePortfolioEnabled), 1)
}

func TestUpdateKeepsBasketOnFailure(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	id, err := reg.Add(ctx, manager, []model.Share{{Asset: tokenA, Bips: 10000}})
	require.NoError(t, err)

	err = reg.Update(ctx, manager, id, []model.Share{{Asset: tokenB, Bips: 9000}})
	require.ErrorIs(t, err, ErrTotalShares)
	portfolio, err := reg.Portfolio(ctx, id)
	require.NoError(t, err)
	require.Equal(t, tokenA, portfolio.Shares[0].Asset)

	require.NoError(t, reg.Update(ctx, manager, id, []model.Share{{Asset: tokenB, Bips: 10000}}))
	portfolio, err = reg.Portfolio(ctx, id)
	require.NoError(t, err)
	require.Equal(t, tokenB, portfolio.Shares[0].Asset)
}

func TestSeed(t *testing.T) {
	reg, _ := newRegistry(t)
	doc := `
- shares:
    - asset: "` + tokenA.Hex() + `"
      bips: 2500
    - asset: "` + tokenB.Hex() + `"
      bips: 7500
- disabled: true
  shares:
    - asset: "` + tokenB.Hex() + `"
      bips: 10000
`
	baskets, err := ParseSeed(strings.NewReader(doc))
	require.NoError(t, err)
	ids, err := reg.Seed(context.Background(), manager, baskets)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)

	all, err := reg.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].Enabled)
	require.False(t, all[1].Enabled)

	_, err = reg.Seed(context.Background(), manager, []SeedBasket{{Shares: []SeedShare{{Asset: "nope", Bips: 10000}}}})
	require.Error(t, err)
}
