// --- File: internal/storage/sqlite/repository.go ---
// Package sqlite implements registry.Repository on an embedded SQLite database.
// Each interest is one row; its value is kept in the same JSON shape as the
// file repository so legacy scalars survive an import.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS interests (
	interest TEXT PRIMARY KEY,
	tokens TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// Repository serializes every read-modify-write inside a transaction on a
// single connection, so concurrent callers in one process never lose updates.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ registry.Repository = (*Repository)(nil)

// New opens (or creates) the database at path and applies the schema.
func New(path string, logger *slog.Logger) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{
		db:     db,
		logger: logger.With("component", "SQLiteRepository", "path", path),
	}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Store(ctx context.Context, interest, token string) (bool, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		current, _, err := r.get(ctx, tx, interest)
		if err != nil {
			return err
		}
		return r.put(ctx, tx, interest, current.With(token))
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Retrieve(ctx context.Context, interest string) (registry.Tokens, bool, error) {
	return r.get(ctx, r.db, interest)
}

func (r *Repository) Forget(ctx context.Context, interest, token string) (bool, error) {
	var forgotten bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		current, found, err := r.get(ctx, tx, interest)
		if err != nil {
			return err
		}

		var next registry.Tokens
		var change registry.Change
		next, change, forgotten = registry.PlanForget(current, found, token)

		switch change {
		case registry.Replace:
			return r.put(ctx, tx, interest, next)
		case registry.Delete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM interests WHERE interest = ?`, interest); err != nil {
				return fmt.Errorf("failed to delete interest: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return forgotten, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) get(ctx context.Context, q queryer, interest string) (registry.Tokens, bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT tokens FROM interests WHERE interest = ?`, interest).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Tokens{}, false, nil
	}
	if err != nil {
		return registry.Tokens{}, false, fmt.Errorf("failed to query interest: %w", err)
	}

	var value registry.Tokens
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		r.logger.Error("Stored tokens are not decodable", "interest", interest, "err", err)
		return registry.Tokens{}, false, fmt.Errorf("%w: interest %q: %v", registry.ErrCorruptStore, interest, err)
	}
	return value, true, nil
}

func (r *Repository) put(ctx context.Context, tx *sql.Tx, interest string, value registry.Tokens) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO interests (interest, tokens, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(interest) DO UPDATE SET tokens = excluded.tokens, updated_at = CURRENT_TIMESTAMP`,
		interest, string(raw))
	if err != nil {
		return fmt.Errorf("failed to upsert interest: %w", err)
	}
	return nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
