package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type slotKey struct {
	account common.Address
	slot    common.Hash
}

// MemoryLedger keeps the whole ledger in process memory. Used by tests and
// by factoryd when no database is configured.
type MemoryLedger struct {
	mu    sync.RWMutex
	state map[slotKey]common.Hash
	code  map[common.Address][]byte
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		state: make(map[slotKey]common.Hash),
		code:  make(map[common.Address][]byte),
	}
}

// RunInTransaction buffers every write in an overlay and folds it into the
// ledger only when fn succeeds and ctx is still live.
func (l *MemoryLedger) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memoryTx{
		ledger: l,
		state:  make(map[slotKey]common.Hash),
		code:   make(map[common.Address][]byte),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, v := range tx.state {
		if v == (common.Hash{}) {
			delete(l.state, k)
			continue
		}
		l.state[k] = v
	}
	for addr, code := range tx.code {
		l.code[addr] = code
	}
	return nil
}

// View runs fn under the read lock; writes fail with ErrReadOnly
func (l *MemoryLedger) View(ctx context.Context, fn func(tx Tx) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(&memoryTx{ledger: l, readOnly: true})
}

// Ping always succeeds
func (l *MemoryLedger) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (l *MemoryLedger) Close() error { return nil }

type memoryTx struct {
	ledger   *MemoryLedger
	readOnly bool
	state    map[slotKey]common.Hash
	code     map[common.Address][]byte
}

func (tx *memoryTx) GetState(ctx context.Context, account common.Address, slot common.Hash) (common.Hash, error) {
	k := slotKey{account, slot}
	if v, ok := tx.state[k]; ok {
		return v, nil
	}
	return tx.ledger.state[k], nil
}

func (tx *memoryTx) SetState(ctx context.Context, account common.Address, slot, value common.Hash) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.state[slotKey{account, slot}] = value
	return nil
}

func (tx *memoryTx) GetCode(ctx context.Context, account common.Address) ([]byte, error) {
	if c, ok := tx.code[account]; ok {
		return bytes.Clone(c), nil
	}
	return bytes.Clone(tx.ledger.code[account]), nil
}

func (tx *memoryTx) SetCode(ctx context.Context, account common.Address, code []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.code[account] = bytes.Clone(code)
	return nil
}
