package amm

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"portfolioSwap/internal/dex"
	"portfolioSwap/internal/ledger"
)

var (
	usdc   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	wbtc   = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	link   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	lp     = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	trader = common.HexToAddress("0x00000000000000000000000000000000000000d2")
)

func seeded(t *testing.T) (*ledger.Memory, *Exchange) {
	t.Helper()
	ctx := context.Background()
	mem := ledger.NewMemory(nil, nil)
	ex := NewExchange(mem, nil)
	for _, token := range []common.Address{usdc, wbtc, link} {
		require.NoError(t, mem.Mint(token, lp, big.NewInt(1_000_000_000)))
	}
	for _, token := range []common.Address{wbtc, link} {
		_, err := ex.CreatePool(ctx, usdc, token, 3000)
		require.NoError(t, err)
		require.NoError(t, ex.AddLiquidity(ctx, lp, usdc, token, 3000, big.NewInt(100_000_000), big.NewInt(100_000_000)))
	}
	return mem, ex
}

func TestAmountOutAppliesFee(t *testing.T) {
	out, err := AmountOut(big.NewInt(1_000), big.NewInt(1_000_000), big.NewInt(1_000_000), 3000)
	require.NoError(t, err)
	// 997 after fee, 997 * 1e6 / (1e6 + 997) = 996
	require.Equal(t, int64(996), out.Int64())

	_, err = AmountOut(big.NewInt(1), big.NewInt(0), big.NewInt(1), 3000)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestCreatePoolValidation(t *testing.T) {
	_, ex := seeded(t)
	ctx := context.Background()

	_, err := ex.CreatePool(ctx, usdc, usdc, 3000)
	require.ErrorIs(t, err, ErrIdenticalTokens)
	_, err = ex.CreatePool(ctx, usdc, wbtc, 0)
	require.ErrorIs(t, err, ErrInvalidFee)
	_, err = ex.CreatePool(ctx, wbtc, usdc, 3000)
	require.ErrorIs(t, err, ErrPoolExists)

	pool, ok, err := ex.GetPool(ctx, wbtc, usdc, 3000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, PoolAddress(newKey(usdc, wbtc)), pool)
}

func TestExactInputSingle(t *testing.T) {
	mem, ex := seeded(t)
	require.NoError(t, mem.Mint(usdc, trader, big.NewInt(10_000)))

	out, err := ex.ExactInputSingle(context.Background(), trader, dex.ExactInputSingleParams{
		TokenIn: usdc, TokenOut: wbtc, Fee: 3000, Recipient: trader, AmountIn: big.NewInt(10_000),
	})
	require.NoError(t, err)
	require.Positive(t, out.Sign())
	require.Less(t, out.Int64(), int64(10_000))
	require.Zero(t, out.Cmp(mem.BalanceOf(wbtc, trader)))
	require.Zero(t, mem.BalanceOf(usdc, trader).Sign())
}

func TestExactInputMultiHopAndMinimum(t *testing.T) {
	mem, ex := seeded(t)
	require.NoError(t, mem.Mint(wbtc, trader, big.NewInt(10_000)))
	path, err := dex.EncodePath([]common.Address{wbtc, usdc, link}, []uint32{3000, 3000})
	require.NoError(t, err)

	_, err = ex.ExactInput(context.Background(), trader, dex.ExactInputParams{
		Path: path, Recipient: trader, AmountIn: big.NewInt(10_000), AmountOutMinimum: big.NewInt(10_000),
	})
	require.ErrorIs(t, err, ErrInsufficientOutput)
	require.Equal(t, int64(10_000), mem.BalanceOf(wbtc, trader).Int64(), "failed swap leaves balances untouched")

	out, err := ex.ExactInput(context.Background(), trader, dex.ExactInputParams{
		Path: path, Recipient: trader, AmountIn: big.NewInt(10_000),
	})
	require.NoError(t, err)
	require.Zero(t, out.Cmp(mem.BalanceOf(link, trader)))
	require.Zero(t, mem.BalanceOf(usdc, ex.Router()).Sign())
}

func TestWrappedNativeRoundTrip(t *testing.T) {
	mem := ledger.NewMemory(nil, nil)
	wethAddr := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	weth, err := NewWrappedNative(mem, wethAddr)
	require.NoError(t, err)
	mem.SetNativeBalance(trader, big.NewInt(100))

	ctx := context.Background()
	require.NoError(t, weth.Wrap(ctx, trader, big.NewInt(60)))
	require.Equal(t, int64(40), mem.NativeBalance(trader).Int64())
	require.Equal(t, int64(60), mem.BalanceOf(wethAddr, trader).Int64())

	require.NoError(t, weth.Unwrap(ctx, trader, big.NewInt(25)))
	require.Equal(t, int64(65), mem.NativeBalance(trader).Int64())
	require.Equal(t, int64(35), mem.BalanceOf(wethAddr, trader).Int64())

	require.ErrorIs(t, weth.Unwrap(ctx, trader, big.NewInt(1_000)), ledger.ErrInsufficientBalance)
}
