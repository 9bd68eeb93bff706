package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store on top of a single jsonb documents table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

// GetDB returns the underlying database connection.
func (s *PostgresStore) GetDB() *sqlx.DB {
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	query := `SELECT doc FROM kv_documents WHERE key = $1`

	var raw []byte
	err := s.db.GetContext(ctx, &raw, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil // Key not found
		}
		return nil, false, err
	}

	return json.RawMessage(raw), true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding document for %q: %w", key, err)
	}

	query := `
		INSERT INTO kv_documents (key, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query, key, raw, time.Now().UTC())
	return err
}
