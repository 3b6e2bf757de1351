package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Predefined errors for store operations
var (
	ErrKeyNotFound = errors.New("store: key not found")
)

// pqUndefinedTable is the SQLSTATE for a missing relation.
const pqUndefinedTable = "42P01"

// PostgresStore implements KeyValueStore using a PostgreSQL table.
// Values are kept as TEXT so the pretty-printed document round-trips byte for byte.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the storage table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS inventory;
		CREATE TABLE IF NOT EXISTS inventory.local_storage (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: EnsureSchema failed to create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM inventory.local_storage
		WHERE key = $1;
	`
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUndefinedTable {
			// Nothing was ever saved on this database.
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("store: Get failed to scan row: %w", err)
	}
	return []byte(value), nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO inventory.local_storage (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP;
	`
	result, err := s.db.ExecContext(ctx, query, key, string(value))
	if err != nil {
		return fmt.Errorf("store: Put failed to execute upsert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: Put failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("store: Put wrote no rows for key %q", key)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		zap.L().Info("closing database connection pool")
		err := s.db.Close()
		if err != nil {
			zap.L().Error("failed to close database connection pool", zap.Error(err))
			return err
		}
		zap.L().Info("database connection pool closed")
		return nil
	}
	return nil
}
