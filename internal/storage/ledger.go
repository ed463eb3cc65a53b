package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrReadOnly is returned by writes attempted inside View
var ErrReadOnly = errors.New("ledger: write in read-only view")

// Ledger is the host's persistent key-value store.
//
// State is addressed as (account, slot) -> 32-byte word, the way EVM contract
// storage is. Unwritten slots read as the zero word. Code is stored per
// account.
type Ledger interface {
	// RunInTransaction executes fn against a private view of the ledger.
	// Writes become visible only if fn returns nil; otherwise none of them do.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	// View executes fn against a read-only snapshot
	View(ctx context.Context, fn func(tx Tx) error) error

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the access surface handed to a single call
type Tx interface {
	GetState(ctx context.Context, account common.Address, slot common.Hash) (common.Hash, error)
	SetState(ctx context.Context, account common.Address, slot, value common.Hash) error

	// GetCode returns nil when the account has no code
	GetCode(ctx context.Context, account common.Address) ([]byte, error)
	SetCode(ctx context.Context, account common.Address, code []byte) error
}
