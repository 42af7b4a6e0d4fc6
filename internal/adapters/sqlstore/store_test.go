package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ledgerworker/internal/domain"
)

func openTestStore(t *testing.T, path, workerID string) *Store {
	t.Helper()
	store, err := OpenSQLite(context.Background(), path, workerID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_FirstLoadInitializes(t *testing.T) {
	store := openTestStore(t, SQLitePath(t.TempDir(), "w1"), "w1")

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
	assert.Zero(t, snap.LoanCounter)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	store := openTestStore(t, path, "w1")
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, snap.CreateAccount(3, decimal.RequireFromString("12.345")))
	_, err = snap.CreateLoan(3, decimal.NewFromInt(100), decimal.NewFromInt(40), now)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, snap))

	next := snap.Clone()
	require.NoError(t, next.Credit(3, decimal.NewFromInt(1), now))
	require.NoError(t, store.Commit(ctx, next))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path, "w1")
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Accounts[3].Balance.Equal(decimal.RequireFromString("13.345")))
	assert.Equal(t, []uint64{1}, got.Accounts[3].Loans)
	assert.Equal(t, uint64(1), got.LoanCounter)
	require.Len(t, got.Transactions[3], 1)
	assert.Equal(t, domain.EntryCredit, got.Transactions[3][0].Type)
}

func TestSQLiteStore_WorkersAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	a := openTestStore(t, path, "a")
	snap := domain.NewSnapshot()
	require.NoError(t, snap.CreateAccount(1, decimal.NewFromInt(5)))
	require.NoError(t, a.Commit(ctx, snap))

	b := openTestStore(t, path, "b")
	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Accounts)
}

func TestOpen_Validation(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ", "w1")
	assert.Error(t, err)
	_, err = OpenPostgres(context.Background(), "", "w1")
	assert.Error(t, err)
	_, err = OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), "")
	assert.Error(t, err)

	var nilStore *Store
	assert.NoError(t, nilStore.Close())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", (&Store{dialect: SQLite}).ph(2))
	assert.Equal(t, "$2", (&Store{dialect: Postgres}).ph(2))
}
