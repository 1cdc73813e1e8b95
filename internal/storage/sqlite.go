package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arthaledger/artha/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// executor is the subset of database/sql shared by *sql.DB and *sql.Tx. All
// queries run through it so the same code serves both the plain store and
// the unit-of-work transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store implements every store interface over an executor.
type store struct {
	exec executor
}

// SQLiteStorage is the production persistence layer. It implements
// service.LearningStore (and therefore every individual store interface),
// service.TaxonomyStore and service.VectorIndex.
type SQLiteStorage struct {
	store
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage opens (creating if necessary) the database at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		store:  store{exec: db},
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Atomically runs fn inside a single database transaction. Every store call
// made through the LearningStore passed to fn commits or rolls back as one
// unit. fn must not retain the store beyond its own return.
func (s *SQLiteStorage) Atomically(ctx context.Context, fn func(service.LearningStore) error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txStore{store{exec: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// txStore is the LearningStore handed to Atomically callbacks. It shares all
// data-access code with SQLiteStorage but runs it on the open transaction.
type txStore struct {
	store
}

// Atomically rejects nesting; SQLite has no nested transactions.
func (t *txStore) Atomically(_ context.Context, _ func(service.LearningStore) error) error {
	return fmt.Errorf("nested transactions not supported")
}
