package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresLedger implements the Ledger interface using PostgreSQL.
// Every RunInTransaction is one SERIALIZABLE database transaction.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger connects, pings and applies the schema
func NewPostgresLedger(ctx context.Context, databaseURL string) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresLedger{pool: pool}, nil
}

// RunInTransaction executes fn inside a serializable transaction and commits
// only when fn returns nil.
func (l *PostgresLedger) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View executes fn inside a read-only transaction
func (l *PostgresLedger) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&postgresTx{tx: tx, readOnly: true})
}

// Ping checks if the database connection is alive
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// Close closes the database connection pool
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

type postgresTx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *postgresTx) GetState(ctx context.Context, account common.Address, slot common.Hash) (common.Hash, error) {
	query := `SELECT value FROM ledger_state WHERE account = $1 AND slot = $2`

	var value []byte
	err := t.tx.QueryRow(ctx, query, account.Bytes(), slot.Bytes()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read slot %s of %s: %w", slot.Hex(), account.Hex(), err)
	}
	return common.BytesToHash(value), nil
}

func (t *postgresTx) SetState(ctx context.Context, account common.Address, slot, value common.Hash) error {
	if t.readOnly {
		return ErrReadOnly
	}

	// Zero words are not stored, matching the in-memory ledger
	if value == (common.Hash{}) {
		query := `DELETE FROM ledger_state WHERE account = $1 AND slot = $2`
		if _, err := t.tx.Exec(ctx, query, account.Bytes(), slot.Bytes()); err != nil {
			return fmt.Errorf("failed to clear slot %s of %s: %w", slot.Hex(), account.Hex(), err)
		}
		return nil
	}

	query := `
		INSERT INTO ledger_state (account, slot, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, slot) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := t.tx.Exec(ctx, query, account.Bytes(), slot.Bytes(), value.Bytes()); err != nil {
		return fmt.Errorf("failed to write slot %s of %s: %w", slot.Hex(), account.Hex(), err)
	}
	return nil
}

func (t *postgresTx) GetCode(ctx context.Context, account common.Address) ([]byte, error) {
	query := `SELECT code FROM ledger_code WHERE account = $1`

	var code []byte
	err := t.tx.QueryRow(ctx, query, account.Bytes()).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read code of %s: %w", account.Hex(), err)
	}
	return code, nil
}

func (t *postgresTx) SetCode(ctx context.Context, account common.Address, code []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}

	query := `
		INSERT INTO ledger_code (account, code, code_size)
		VALUES ($1, $2, $3)
		ON CONFLICT (account) DO UPDATE SET code = EXCLUDED.code, code_size = EXCLUDED.code_size
	`
	if _, err := t.tx.Exec(ctx, query, account.Bytes(), code, len(code)); err != nil {
		return fmt.Errorf("failed to write code of %s: %w", account.Hex(), err)
	}
	return nil
}
