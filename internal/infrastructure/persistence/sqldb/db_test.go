package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/pkg/database"
)

func setup(t *testing.T) *DB {
	t.Helper()
	raw, err := database.New(database.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "tx.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	_, err = raw.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
	require.NoError(t, err)

	return New(raw, zap.NewNop())
}

func count(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Executor(context.Background()).QueryRowContext(context.Background(), "SELECT COUNT(*) FROM items").Scan(&n))
	return n
}

func TestWithTransaction_Commit(t *testing.T) {
	db := setup(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, txFromContext(ctx))
		_, err := db.Executor(ctx).ExecContext(ctx, db.Rebind("INSERT INTO items (name) VALUES (?)"), "a")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := setup(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := db.Executor(ctx).ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", "a"); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db := setup(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			_, _ = db.Executor(ctx).ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", "a")
			panic("oops")
		})
	})
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := setup(t)
	boom := errors.New("outer failure")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		inner := db.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := db.Executor(ctx).ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", "inner")
			return err
		})
		require.NoError(t, inner)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db), "inner work must roll back with the outer transaction")
}

func TestExecutor_OutsideTransaction(t *testing.T) {
	db := setup(t)
	assert.Nil(t, txFromContext(context.Background()))
	assert.Equal(t, 0, count(t, db))
}
