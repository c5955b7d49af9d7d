package scenario

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"portfolioSwap/internal/access"
	"portfolioSwap/internal/actions"
	"portfolioSwap/internal/amm"
	"portfolioSwap/internal/broker"
	"portfolioSwap/internal/dex"
	"portfolioSwap/internal/events"
	"portfolioSwap/internal/ledger"
	"portfolioSwap/internal/model"
	"portfolioSwap/internal/registry"
)

const (
	AdminAccount     = "admin"
	LiquidityAccount = "liquidity"
	BrokerAccount    = "broker"
	ExecutorAccount  = "executor"
)

// Params are the engine parameters applied to a built world.
type Params struct {
	ServiceFeeBips uint64
	DefaultFeeTier uint32
	DefaultTimeout uint64
	Lookback       uint64
	FeeTiers       []uint32
}

// DeriveAddress returns the deterministic address used for a named account
// or token without an explicit address.
func DeriveAddress(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("portfolioSwap/" + strings.ToLower(label)))[12:])
}

// World is a fully wired in-memory market.
type World struct {
	Ledger   *ledger.Memory
	Exchange *amm.Exchange
	Wrapped  *amm.WrappedNative
	Control  *access.Control
	Registry *registry.Registry
	Broker   *broker.Broker
	Executor *actions.Executor

	anchor   common.Address
	tokens   map[string]model.AssetMeta
	accounts map[string]common.Address
}

// Build seeds tokens, pools, accounts and portfolios from file.
func Build(ctx context.Context, file File, params Params, emitter events.Emitter, logger *zap.Logger) (*World, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &World{
		Ledger:   ledger.NewMemory(emitter, logger),
		tokens:   make(map[string]model.AssetMeta),
		accounts: make(map[string]common.Address),
	}
	for _, name := range []string{AdminAccount, LiquidityAccount, BrokerAccount, ExecutorAccount} {
		w.accounts[name] = DeriveAddress(name)
	}

	for _, token := range file.Tokens {
		if err := w.addToken(token); err != nil {
			return nil, err
		}
	}
	anchor, err := w.Token(file.Anchor)
	if err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	w.anchor = anchor
	wrappedAddr, err := w.Token(file.WrappedNative)
	if err != nil {
		return nil, fmt.Errorf("wrapped native: %w", err)
	}
	w.Wrapped, err = amm.NewWrappedNative(w.Ledger, wrappedAddr)
	if err != nil {
		return nil, err
	}
	w.Ledger.Deploy(wrappedAddr, w.Wrapped)
	w.Exchange = amm.NewExchange(w.Ledger, logger)

	for _, account := range file.Accounts {
		if err := w.addAccount(ctx, account); err != nil {
			return nil, err
		}
	}
	for i, pool := range file.Pools {
		if err := w.addPool(ctx, pool); err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
	}

	admin := w.accounts[AdminAccount]
	w.Control = access.NewControl(admin)
	if err := w.Control.Grant(admin, access.AdminRole, admin); err != nil {
		return nil, err
	}
	if err := w.Control.Grant(admin, access.PortfolioManagerRole, admin); err != nil {
		return nil, err
	}

	w.Registry = registry.New(registry.Config{
		Address:  DeriveAddress("registry"),
		Anchor:   anchor,
		FeeTiers: params.FeeTiers,
	}, w.Ledger, w.Exchange, w.Control, logger)
	baskets, err := w.resolveBaskets(file.Portfolios)
	if err != nil {
		return nil, err
	}
	if _, err := w.Registry.Seed(ctx, admin, baskets); err != nil {
		return nil, fmt.Errorf("seed portfolios: %w", err)
	}

	brokerAddr := w.accounts[BrokerAccount]
	adapter := dex.NewAdapter(dex.AdapterConfig{Anchor: anchor, Account: brokerAddr}, w.Exchange, logger)
	w.Broker, err = broker.New(broker.Config{
		Address:         brokerAddr,
		ServiceFeeBips:  params.ServiceFeeBips,
		DefaultFeeTier:  params.DefaultFeeTier,
		DefaultTimeout:  params.DefaultTimeout,
		LookbackSeconds: params.Lookback,
	}, w.Ledger, w.Registry, adapter, w.Wrapped, w.Control, dex.NewSlippageEstimator(w.Exchange, anchor), logger)
	if err != nil {
		return nil, fmt.Errorf("build broker: %w", err)
	}
	w.Executor = actions.New(actions.Config{Address: w.accounts[ExecutorAccount]}, w.Ledger, logger)
	return w, nil
}

func (w *World) addToken(token Token) error {
	symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
	if symbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if _, dup := w.tokens[symbol]; dup {
		return fmt.Errorf("duplicate token %s", symbol)
	}
	addr := DeriveAddress("token/" + symbol)
	if token.Address != "" {
		if !common.IsHexAddress(token.Address) {
			return fmt.Errorf("invalid address for %s: %s", symbol, token.Address)
		}
		addr = common.HexToAddress(token.Address)
	}
	w.tokens[symbol] = model.AssetMeta{Address: addr.Hex(), Decimals: token.Decimals, Symbol: symbol, Name: token.Symbol}
	return nil
}

func (w *World) addAccount(ctx context.Context, account Account) error {
	name := strings.ToLower(strings.TrimSpace(account.Name))
	if name == "" {
		return fmt.Errorf("account name is required")
	}
	addr := DeriveAddress(name)
	if account.Address != "" {
		if !common.IsHexAddress(account.Address) {
			return fmt.Errorf("invalid address for %s: %s", name, account.Address)
		}
		addr = common.HexToAddress(account.Address)
	}
	w.accounts[name] = addr

	if account.Native != "" {
		amount, err := ParseAmount(account.Native, NativeDecimals)
		if err != nil {
			return fmt.Errorf("account %s native: %w", name, err)
		}
		w.fundNative(addr, amount)
	}
	symbols := make([]string, 0, len(account.Balances))
	for symbol := range account.Balances {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		if err := w.fund(ctx, addr, symbol, account.Balances[symbol]); err != nil {
			return fmt.Errorf("account %s: %w", name, err)
		}
	}
	return nil
}

func (w *World) addPool(ctx context.Context, pool Pool) error {
	lp := w.accounts[LiquidityAccount]
	tokenA, err := w.Token(pool.TokenA)
	if err != nil {
		return err
	}
	tokenB, err := w.Token(pool.TokenB)
	if err != nil {
		return err
	}
	amountA, err := w.parseTokenAmount(pool.TokenA, pool.AmountA)
	if err != nil {
		return err
	}
	amountB, err := w.parseTokenAmount(pool.TokenB, pool.AmountB)
	if err != nil {
		return err
	}
	if err := w.mint(ctx, lp, tokenA, amountA); err != nil {
		return err
	}
	if err := w.mint(ctx, lp, tokenB, amountB); err != nil {
		return err
	}
	if _, err := w.Exchange.CreatePool(ctx, tokenA, tokenB, pool.Fee); err != nil {
		return err
	}
	return w.Exchange.AddLiquidity(ctx, lp, tokenA, tokenB, pool.Fee, amountA, amountB)
}

func (w *World) resolveBaskets(baskets []registry.SeedBasket) ([]registry.SeedBasket, error) {
	out := make([]registry.SeedBasket, 0, len(baskets))
	for i, basket := range baskets {
		resolved := registry.SeedBasket{Disabled: basket.Disabled, Shares: make([]registry.SeedShare, 0, len(basket.Shares))}
		for _, share := range basket.Shares {
			asset := share.Asset
			if !common.IsHexAddress(asset) {
				addr, err := w.Token(asset)
				if err != nil {
					return nil, fmt.Errorf("portfolio %d: %w", i, err)
				}
				asset = addr.Hex()
			}
			resolved.Shares = append(resolved.Shares, registry.SeedShare{Asset: asset, Bips: share.Bips})
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (w *World) fund(ctx context.Context, holder common.Address, symbol, amount string) error {
	token, err := w.Token(symbol)
	if err != nil {
		return err
	}
	value, err := w.parseTokenAmount(symbol, amount)
	if err != nil {
		return err
	}
	return w.mint(ctx, holder, token, value)
}

// mint credits holder with amount of token. The wrapped native token is
// minted by wrapping freshly funded native balance so that it stays backed.
func (w *World) mint(ctx context.Context, holder, token common.Address, amount *big.Int) error {
	if token == w.Wrapped.Asset() {
		w.fundNative(holder, amount)
		return w.Wrapped.Wrap(ctx, holder, amount)
	}
	return w.Ledger.Mint(token, holder, amount)
}

func (w *World) fundNative(holder common.Address, amount *big.Int) {
	w.Ledger.SetNativeBalance(holder, new(big.Int).Add(w.Ledger.NativeBalance(holder), amount))
}

// Token resolves a token symbol.
func (w *World) Token(symbol string) (common.Address, error) {
	meta, ok := w.tokens[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown token %q", symbol)
	}
	return common.HexToAddress(meta.Address), nil
}

// Account resolves an account name.
func (w *World) Account(name string) (common.Address, error) {
	addr, ok := w.accounts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown account %q", name)
	}
	return addr, nil
}

// Resolve maps an account name, token symbol or hex address to an address.
func (w *World) Resolve(ref string) (common.Address, error) {
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	if addr, err := w.Account(ref); err == nil {
		return addr, nil
	}
	return w.Token(ref)
}

func (w *World) decimals(symbol string) uint8 {
	return w.tokens[strings.ToUpper(strings.TrimSpace(symbol))].Decimals
}

func (w *World) parseTokenAmount(symbol, amount string) (*big.Int, error) {
	if _, err := w.Token(symbol); err != nil {
		return nil, err
	}
	value, err := ParseAmount(amount, w.decimals(symbol))
	if err != nil {
		return nil, fmt.Errorf("%s amount: %w", symbol, err)
	}
	return value, nil
}

// Balance is one line of a balance sheet.
type Balance struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

// Balances reports every non-zero balance of the named accounts, sorted by
// account then asset. The native asset is reported as NATIVE.
func (w *World) Balances() []Balance {
	names := make([]string, 0, len(w.accounts))
	for name := range w.accounts {
		if name == LiquidityAccount {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	symbols := make([]string, 0, len(w.tokens))
	for symbol := range w.tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var out []Balance
	for _, name := range names {
		addr := w.accounts[name]
		if native := w.Ledger.NativeBalance(addr); native.Sign() > 0 {
			out = append(out, Balance{Account: name, Asset: "NATIVE", Amount: FormatAmount(native, NativeDecimals)})
		}
		for _, symbol := range symbols {
			meta := w.tokens[symbol]
			if bal := w.Ledger.BalanceOf(common.HexToAddress(meta.Address), addr); bal.Sign() > 0 {
				out = append(out, Balance{Account: name, Asset: symbol, Amount: FormatAmount(bal, meta.Decimals)})
			}
		}
	}
	return out
}
