package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	acct  = common.HexToAddress("0x000000000000000000000000000000000000fac7")
	slot0 = common.Hash{}
	slot1 = common.BigToHash(common.Big1)
)

// exerciseLedger checks the commit/rollback contract every Ledger must honor
func exerciseLedger(t *testing.T, l Ledger) {
	ctx := context.Background()

	// committed writes are visible afterwards
	err := l.RunInTransaction(ctx, func(tx Tx) error {
		if err := tx.SetState(ctx, acct, slot0, common.HexToHash("0x01")); err != nil {
			return err
		}
		v, err := tx.GetState(ctx, acct, slot0)
		require.NoError(t, err)
		require.Equal(t, common.HexToHash("0x01"), v)
		return tx.SetCode(ctx, acct, []byte{0xde, 0xad})
	})
	require.NoError(t, err)

	// failed transactions leave nothing behind
	boom := errors.New("boom")
	err = l.RunInTransaction(ctx, func(tx Tx) error {
		require.NoError(t, tx.SetState(ctx, acct, slot0, common.HexToHash("0x02")))
		require.NoError(t, tx.SetState(ctx, acct, slot1, common.HexToHash("0x03")))
		require.NoError(t, tx.SetCode(ctx, acct, []byte{0xbe, 0xef}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = l.View(ctx, func(tx Tx) error {
		v, err := tx.GetState(ctx, acct, slot0)
		require.NoError(t, err)
		require.Equal(t, common.HexToHash("0x01"), v)

		v, err = tx.GetState(ctx, acct, slot1)
		require.NoError(t, err)
		require.Equal(t, common.Hash{}, v)

		code, err := tx.GetCode(ctx, acct)
		require.NoError(t, err)
		require.Equal(t, []byte{0xde, 0xad}, code)

		code, err = tx.GetCode(ctx, common.HexToAddress("0x01"))
		require.NoError(t, err)
		require.Nil(t, code)

		require.ErrorIs(t, tx.SetState(ctx, acct, slot1, common.HexToHash("0x09")), ErrReadOnly)
		require.ErrorIs(t, tx.SetCode(ctx, acct, nil), ErrReadOnly)
		return nil
	})
	require.NoError(t, err)

	// writing the zero word clears the slot
	require.NoError(t, l.RunInTransaction(ctx, func(tx Tx) error {
		return tx.SetState(ctx, acct, slot0, common.Hash{})
	}))
	require.NoError(t, l.View(ctx, func(tx Tx) error {
		v, err := tx.GetState(ctx, acct, slot0)
		require.NoError(t, err)
		require.Equal(t, common.Hash{}, v)
		return nil
	}))

	require.NoError(t, l.Ping(ctx))
}

func TestMemoryLedger(t *testing.T) {
	exerciseLedger(t, NewMemoryLedger())
}

func TestMemoryLedgerCancelledContextRollsBack(t *testing.T) {
	l := NewMemoryLedger()
	ctx, cancel := context.WithCancel(context.Background())

	err := l.RunInTransaction(ctx, func(tx Tx) error {
		require.NoError(t, tx.SetState(ctx, acct, slot0, common.HexToHash("0x01")))
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, l.state)
}

func TestMemoryLedgerCodeIsCopied(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	code := []byte{0x01, 0x02}

	require.NoError(t, l.RunInTransaction(ctx, func(tx Tx) error {
		return tx.SetCode(ctx, acct, code)
	}))
	code[0] = 0xff

	require.NoError(t, l.View(ctx, func(tx Tx) error {
		got, err := tx.GetCode(ctx, acct)
		require.NoError(t, err)
		require.Equal(t, []byte{0x01, 0x02}, got)
		got[1] = 0xff
		return nil
	}))
	require.Equal(t, []byte{0x01, 0x02}, l.code[acct])
}

func TestPostgresLedger(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	l, err := NewPostgresLedger(ctx, dsn)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.pool.Exec(ctx, `TRUNCATE ledger_state, ledger_code`)
	require.NoError(t, err)

	exerciseLedger(t, l)
}
