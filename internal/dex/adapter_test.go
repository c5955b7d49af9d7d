package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolioSwap/internal/model"
)

var (
	anchor = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	wbtc   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	link   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	engine = common.HexToAddress("0x00000000000000000000000000000000000000e0")
)

type fakeExchange struct {
	pools  map[model.PoolKey]bool
	single []ExactInputSingleParams
	multi  []ExactInputParams
}

func (f *fakeExchange) GetPool(_ context.Context, a, b common.Address, fee uint32) (common.Address, bool, error) {
	if f.pools[model.NewPoolKey(a, b, fee)] {
		return common.BytesToAddress([]byte{byte(fee)}), true, nil
	}
	return common.Address{}, false, nil
}

func (f *fakeExchange) ExactInputSingle(_ context.Context, payer common.Address, p ExactInputSingleParams) (*big.Int, error) {
	f.single = append(f.single, p)
	return new(big.Int).Mul(p.AmountIn, big.NewInt(2)), nil
}

func (f *fakeExchange) ExactInput(_ context.Context, payer common.Address, p ExactInputParams) (*big.Int, error) {
	f.multi = append(f.multi, p)
	return new(big.Int).Mul(p.AmountIn, big.NewInt(3)), nil
}

func newFake(keys ...model.PoolKey) *fakeExchange {
	f := &fakeExchange{pools: make(map[model.PoolKey]bool)}
	for _, key := range keys {
		f.pools[key] = true
	}
	return f
}

func TestAdapterDirectPool(t *testing.T) {
	ex := newFake(model.NewPoolKey(anchor, wbtc, 3000))
	adapter := NewAdapter(AdapterConfig{Anchor: anchor, Account: engine}, ex, zap.NewNop())

	out, err := adapter.Swap(context.Background(), anchor, wbtc, big.NewInt(100), 900, 3000)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Int64() != 200 {
		t.Fatalf("amount out: want 200, got %s", out)
	}
	if len(ex.single) != 1 || len(ex.multi) != 0 {
		t.Fatalf("expected one single-hop swap, got single=%d multi=%d", len(ex.single), len(ex.multi))
	}
	call := ex.single[0]
	if call.Recipient != engine || call.AmountOutMinimum.Sign() != 0 || call.SqrtPriceLimitX96.Sign() != 0 {
		t.Fatalf("unexpected swap params: %+v", call)
	}
}

func TestAdapterRoutesThroughAnchor(t *testing.T) {
	ex := newFake(model.NewPoolKey(anchor, wbtc, 500), model.NewPoolKey(anchor, link, 500))
	adapter := NewAdapter(AdapterConfig{Anchor: anchor, Account: engine}, ex, nil)

	out, err := adapter.Swap(context.Background(), wbtc, link, big.NewInt(10), 0, 500)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Int64() != 30 {
		t.Fatalf("amount out: want 30, got %s", out)
	}
	if len(ex.multi) != 1 {
		t.Fatalf("expected one multi-hop swap")
	}
	hops, err := DecodePath(ex.multi[0].Path)
	if err != nil {
		t.Fatalf("decode path: %v", err)
	}
	if len(hops) != 2 || hops[0].TokenOut != anchor || hops[1].TokenOut != link || hops[0].Fee != 500 || hops[1].Fee != 500 {
		t.Fatalf("unexpected hops: %+v", hops)
	}
}

func TestAdapterPoolMissing(t *testing.T) {
	ex := newFake(model.NewPoolKey(anchor, wbtc, 3000))
	adapter := NewAdapter(AdapterConfig{Anchor: anchor, Account: engine}, ex, nil)

	if _, err := adapter.Swap(context.Background(), wbtc, link, big.NewInt(10), 0, 3000); !errors.Is(err, ErrPoolMissing) {
		t.Fatalf("expected pool missing, got %v", err)
	}
	if _, err := adapter.Swap(context.Background(), anchor, link, big.NewInt(10), 0, 3000); !errors.Is(err, ErrPoolMissing) {
		t.Fatalf("expected pool missing for anchor leg, got %v", err)
	}
	if len(ex.single)+len(ex.multi) != 0 {
		t.Fatalf("no swap should have been attempted")
	}
}

func TestAdapterIdentityAndZero(t *testing.T) {
	ex := newFake()
	adapter := NewAdapter(AdapterConfig{Anchor: anchor, Account: engine}, ex, nil)

	out, err := adapter.Swap(context.Background(), wbtc, wbtc, big.NewInt(7), 0, 3000)
	if err != nil || out.Int64() != 7 {
		t.Fatalf("identity swap: out=%v err=%v", out, err)
	}
	out, err = adapter.Swap(context.Background(), wbtc, link, big.NewInt(0), 0, 3000)
	if err != nil || out.Sign() != 0 {
		t.Fatalf("zero swap: out=%v err=%v", out, err)
	}
}
