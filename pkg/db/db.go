// Package db is the sqlite-backed word/sentence graph and review state store.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var migrationsSQL string

const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPureGo is modernc.org/sqlite.
	DriverPureGo = "sqlite"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	busyTimeoutMillis = 5000
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open connects to the sqlite database at path with the given driver and
// applies migrations. File databases use WAL and wait on locks instead of
// failing; in-memory databases are pinned to one connection so every caller
// sees the same data.
func Open(ctx context.Context, driver, path string) (*sql.DB, error) {
	dsn, err := dataSourceName(driver, path)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	if path == MemoryPath {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, &StoreError{Op: "connect", Err: err}
	}
	if err := InitDB(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func dataSourceName(driver, path string) (string, error) {
	if path == MemoryPath {
		return path, nil
	}
	switch driver {
	case DriverCGO:
		return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=1", path, busyTimeoutMillis), nil
	case DriverPureGo:
		return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, busyTimeoutMillis), nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", driver)
	}
}

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(ctx context.Context, conn *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, s); err != nil {
			return &StoreError{Op: "migrate", Err: err}
		}
	}
	return nil
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise; fn's error is returned unchanged.
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "begin", Err: err}
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}
	return nil
}
