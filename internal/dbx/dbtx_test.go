package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM t`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('first')`)
		require.NoError(t, e)
		return errors.New("second write failed")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, db))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		assert.Equal(t, 0, countRows(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	assert.Error(t, err)
}

func TestMigrate_AppliesEmbeddedFS(t *testing.T) {
	db, err := sql.Open("sqlite", "file:dbx_migrate?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fsys := fstest.MapFS{
		"00001_kv.sql": {Data: []byte(`-- +goose Up
CREATE TABLE kv (k TEXT PRIMARY KEY, v BLOB);

-- +goose Down
DROP TABLE kv;
`)},
	}

	require.NoError(t, Migrate(context.Background(), db, "sqlite3", fsys, nil))

	_, err = db.Exec(`INSERT INTO kv (k, v) VALUES ('a', x'00')`)
	assert.NoError(t, err)

	// a second run is a no-op
	assert.NoError(t, Migrate(context.Background(), db, "sqlite3", fsys, nil))
}

func TestMigrate_Errors(t *testing.T) {
	called := false
	up := func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		assert.Equal(t, ".", dir)
		return errors.New("boom")
	}

	err := Migrate(context.Background(), nil, "sqlite3", fstest.MapFS{}, up)
	assert.EqualError(t, err, "boom")
	assert.True(t, called)

	called = false
	assert.Error(t, Migrate(context.Background(), nil, "no-such-dialect", fstest.MapFS{}, up))
	assert.False(t, called)
}
