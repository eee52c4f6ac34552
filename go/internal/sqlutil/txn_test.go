package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type counterQueries struct{ tx *sql.Tx }

func bindCounter(tx *sql.Tx) *counterQueries { return &counterQueries{tx: tx} }

func (q *counterQueries) add(ctx context.Context, n int) error {
	_, err := q.tx.ExecContext(ctx, `UPDATE counter SET n = n + ?`, n)
	return err
}

func openCounter(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "txn.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE counter (n INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO counter (n) VALUES (0)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT n FROM counter`).Scan(&n))
	return n
}

func TestRunCommits(t *testing.T) {
	db := openCounter(t)
	ctx := context.Background()

	err := Run(ctx, db, bindCounter, func(q *counterQueries) error {
		if err := q.add(ctx, 2); err != nil {
			return err
		}
		return q.add(ctx, 3)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, count(t, db))
}

func TestRunRollsBackOnError(t *testing.T) {
	db := openCounter(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := Run(ctx, db, bindCounter, func(q *counterQueries) error {
		require.NoError(t, q.add(ctx, 7))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestRunRollsBackOnPanic(t *testing.T) {
	db := openCounter(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, "bad row", func() {
		_ = Run(ctx, db, bindCounter, func(q *counterQueries) error {
			require.NoError(t, q.add(ctx, 7))
			panic("bad row")
		})
	})
	assert.Equal(t, 0, count(t, db))
}

func TestRunWrapsBeginError(t *testing.T) {
	db := openCounter(t)
	require.NoError(t, db.Close())

	err := Run(context.Background(), db, bindCounter, func(*counterQueries) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
}
