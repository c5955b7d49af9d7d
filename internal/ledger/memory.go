package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolioSwap/internal/events"
)

type txKey struct{}

type journal struct {
	kv       map[string][]byte
	balances map[common.Address]map[common.Address]*big.Int
	native   map[common.Address]*big.Int
	logs     []events.Event
}

func newJournal() *journal {
	return &journal{
		kv:       make(map[string][]byte),
		balances: make(map[common.Address]map[common.Address]*big.Int),
		native:   make(map[common.Address]*big.Int),
	}
}

// copy relies on stored byte slices and big.Ints never being mutated in place.
func (j *journal) copy() *journal {
	out := &journal{
		kv:       make(map[string][]byte, len(j.kv)),
		balances: make(map[common.Address]map[common.Address]*big.Int, len(j.balances)),
		native:   make(map[common.Address]*big.Int, len(j.native)),
		logs:     make([]events.Event, len(j.logs)),
	}
	for k, v := range j.kv {
		out.kv[k] = v
	}
	for asset, holders := range j.balances {
		inner := make(map[common.Address]*big.Int, len(holders))
		for holder, amount := range holders {
			inner[holder] = amount
		}
		out.balances[asset] = inner
	}
	for holder, amount := range j.native {
		out.native[holder] = amount
	}
	copy(out.logs, j.logs)
	return out
}

// Memory is an in-process State. Top-level Apply calls are serialized; the
// state is snapshotted before each call and restored on failure.
type Memory struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	current   *journal
	snapshots []*journal
	contracts map[common.Address]Contract

	emitter events.Emitter
	logger  *zap.Logger
}

// NewMemory builds an empty ledger. Committed events are delivered to emitter.
func NewMemory(emitter events.Emitter, logger *zap.Logger) *Memory {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		current:   newJournal(),
		contracts: make(map[common.Address]Contract),
		emitter:   emitter,
		logger:    logger,
	}
}

// Deploy installs contract code at addr.
func (m *Memory) Deploy(addr common.Address, contract Contract) {
	m.mu.Lock()
	m.contracts[addr] = contract
	m.mu.Unlock()
}

func (m *Memory) contract(addr common.Address) Contract {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contracts[addr]
}

// Snapshot records the current state and returns its id.
func (m *Memory) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, m.current.copy())
	return len(m.snapshots) - 1
}

// RevertToSnapshot restores the state recorded by Snapshot and drops every
// later snapshot.
func (m *Memory) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	m.current = m.snapshots[id]
	m.snapshots = m.snapshots[:id]
}

func (m *Memory) release(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id >= 0 && id < len(m.snapshots) {
		m.snapshots = m.snapshots[:id]
	}
}

func (m *Memory) drainLogs() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := m.current.logs
	m.current.logs = nil
	return logs
}

func (m *Memory) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Memory)
	return ok && owner == m
}

// Apply implements State.
func (m *Memory) Apply(ctx context.Context, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.inTx(ctx) {
		id := m.Snapshot()
		if err := fn(ctx); err != nil {
			m.RevertToSnapshot(id)
			return err
		}
		m.release(id)
		return nil
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	id := m.Snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, m)); err != nil {
		m.RevertToSnapshot(id)
		m.logger.Debug("transaction reverted", zap.Error(err))
		return err
	}
	m.release(id)

	for _, ev := range m.drainLogs() {
		m.emitter.Emit(ev)
	}
	return nil
}

// Get implements State.
func (m *Memory) Get(key []byte) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.current.kv[string(key)]
	if !ok {
		return nil, false
	}
	return common.CopyBytes(value), true
}

// Put implements State.
func (m *Memory) Put(key, value []byte) {
	m.mu.Lock()
	m.current.kv[string(key)] = common.CopyBytes(value)
	m.mu.Unlock()
}

// Delete implements State.
func (m *Memory) Delete(key []byte) {
	m.mu.Lock()
	delete(m.current.kv, string(key))
	m.mu.Unlock()
}

// BalanceOf implements State.
func (m *Memory) BalanceOf(asset, holder common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBig(m.current.balances[asset][holder])
}

func (m *Memory) setBalance(asset, holder common.Address, amount *big.Int) {
	holders, ok := m.current.balances[asset]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		m.current.balances[asset] = holders
	}
	holders[holder] = amount
}

// Transfer implements State.
func (m *Memory) Transfer(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fromBal := cloneBig(m.current.balances[asset][from])
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset %s holder %s has %s, needs %s", ErrInsufficientBalance, asset.Hex(), from.Hex(), fromBal, amount)
	}
	m.setBalance(asset, from, new(big.Int).Sub(fromBal, amount))
	toBal := cloneBig(m.current.balances[asset][to])
	m.setBalance(asset, to, new(big.Int).Add(toBal, amount))
	return nil
}

// Mint implements State.
func (m *Memory) Mint(asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := cloneBig(m.current.balances[asset][to])
	m.setBalance(asset, to, new(big.Int).Add(bal, amount))
	return nil
}

// Burn implements State.
func (m *Memory) Burn(asset, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := cloneBig(m.current.balances[asset][from])
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: burn %s of %s from %s", ErrInsufficientBalance, amount, asset.Hex(), from.Hex())
	}
	m.setBalance(asset, from, new(big.Int).Sub(bal, amount))
	return nil
}

// NativeBalance implements State.
func (m *Memory) NativeBalance(holder common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBig(m.current.native[holder])
}

// SetNativeBalance overwrites a native balance. Intended for genesis funding.
func (m *Memory) SetNativeBalance(holder common.Address, amount *big.Int) {
	m.mu.Lock()
	m.current.native[holder] = cloneBig(amount)
	m.mu.Unlock()
}

func (m *Memory) moveNative(from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fromBal := cloneBig(m.current.native[from])
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: native holder %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal, amount)
	}
	m.current.native[from] = new(big.Int).Sub(fromBal, amount)
	m.current.native[to] = new(big.Int).Add(cloneBig(m.current.native[to]), amount)
	return nil
}

// TransferNative implements State. A receiving contract that implements
// NativeReceiver may refuse the transfer, which is then rolled back.
func (m *Memory) TransferNative(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return m.Apply(ctx, func(ctx context.Context) error {
		if err := m.moveNative(from, to, amount); err != nil {
			return err
		}
		receiver, ok := m.contract(to).(NativeReceiver)
		if !ok {
			return nil
		}
		if err := receiver.ReceiveNative(ctx, from, cloneBig(amount)); err != nil {
			return fmt.Errorf("%w: %v", ErrNativeRejected, err)
		}
		return nil
	})
}

// Call implements State. Value moves before the target runs; a call to an
// address without code only moves value.
func (m *Memory) Call(ctx context.Context, msg Message) ([]byte, error) {
	if msg.Value != nil && msg.Value.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	var ret []byte
	err := m.Apply(ctx, func(ctx context.Context) error {
		if msg.Value != nil && msg.Value.Sign() > 0 {
			if err := m.moveNative(msg.From, msg.To, msg.Value); err != nil {
				return err
			}
		}
		target := m.contract(msg.To)
		if target == nil {
			return nil
		}
		out, err := target.Call(ctx, Message{
			From:  msg.From,
			To:    msg.To,
			Value: cloneBig(msg.Value),
			Data:  common.CopyBytes(msg.Data),
		})
		if err != nil {
			return err
		}
		ret = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Emit implements State. Events emitted inside a transaction are delivered
// only when the top-level call commits.
func (m *Memory) Emit(ev events.Event) {
	m.mu.Lock()
	if len(m.snapshots) == 0 {
		m.mu.Unlock()
		m.emitter.Emit(ev)
		return
	}
	m.current.logs = append(m.current.logs, ev)
	m.mu.Unlock()
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
