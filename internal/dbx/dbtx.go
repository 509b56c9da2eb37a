// Package dbx holds the database/sql plumbing shared by the SQL secret
// stores: a handle interface satisfied by both *sql.DB and *sql.Tx, a
// transaction helper, and the goose migration runner.
package dbx

import (
	"context"
	"database/sql"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

// DBTX is the subset of database/sql the stores use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: commit when fn returns nil, roll back
// on error or panic. Panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    for k, v := range items {
//	        if err := put(ctx, tx, k, v); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// UpFunc has the shape of goose.UpContext.
type UpFunc func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error

// goose keeps the base FS and dialect in package globals
var migrateMu sync.Mutex

// Migrate applies the migrations at the root of fsys with the given goose
// dialect. up defaults to goose.UpContext.
func Migrate(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, up UpFunc) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if up == nil {
		up = goose.UpContext
	}

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return up(ctx, db, ".")
}
