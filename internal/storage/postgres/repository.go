// Package postgres implements registry.Repository on PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS interests (
	interest TEXT PRIMARY KEY,
	tokens JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Repository runs each read-modify-write in a transaction holding a
// per-interest advisory lock, so writers on any number of hosts are serialized.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ registry.Repository = (*Repository)(nil)

// Connect opens a pool for databaseURL and applies the schema.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Repository, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.Connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Repository{
		pool:   pool,
		logger: logger.With("component", "PostgresRepository"),
	}, nil
}

func (r *Repository) Close() {
	r.pool.Close()
}

func (r *Repository) Store(ctx context.Context, interest, token string) (bool, error) {
	err := r.withLockedInterest(ctx, interest, func(tx pgx.Tx) error {
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
	return r.get(ctx, r.pool, interest)
}

func (r *Repository) Forget(ctx context.Context, interest, token string) (bool, error) {
	var forgotten bool
	err := r.withLockedInterest(ctx, interest, func(tx pgx.Tx) error {
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
			if _, err := tx.Exec(ctx, `DELETE FROM interests WHERE interest = $1`, interest); err != nil {
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

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *Repository) get(ctx context.Context, q querier, interest string) (registry.Tokens, bool, error) {
	var raw string
	err := q.QueryRow(ctx, `SELECT tokens::text FROM interests WHERE interest = $1`, interest).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (r *Repository) put(ctx context.Context, tx pgx.Tx, interest string, value registry.Tokens) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO interests (interest, tokens, updated_at) VALUES ($1, $2::text::jsonb, now())
		ON CONFLICT (interest) DO UPDATE SET tokens = EXCLUDED.tokens, updated_at = now()`,
		interest, string(raw))
	if err != nil {
		return fmt.Errorf("failed to upsert interest: %w", err)
	}
	return nil
}

func (r *Repository) withLockedInterest(ctx context.Context, interest string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, interest); err != nil {
		return fmt.Errorf("failed to lock interest: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
