// Package store is the relational entity store for Eludris, backed by
// PostgreSQL via pgx.
//
// Handlers call into it per operation; multi-statement edits that must
// preserve the ordering or message invariants run inside a single
// transaction via withTx. The store owns the snowflake generator so id
// allocation is serialized per worker.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/ids"
	"github.com/eludris/eludris/pkg/models"
)

// Store provides persistence for every Eludris entity.
type Store struct {
	pool *pgxpool.Pool
	gen  *ids.Generator
	log  *slog.Logger
}

// New connects to Postgres, optionally applies migrations, and returns the
// store.
func New(ctx context.Context, cfg config.DatabaseConfig, gen *ids.Generator) (*Store, error) {
	log := logger.With("component", "store")

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		log.Info("auto_migrate enabled, running migrations")
		if err := RunMigrations(ctx, cfg.URL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &Store{pool: pool, gen: gen, log: log}, nil
}

// NewID allocates a fresh snowflake.
func (s *Store) NewID() uint64 { return s.gen.Next() }

// Ping checks database health.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// withTx runs fn inside a transaction, committing on nil and rolling back on
// error. Read-committed isolation is sufficient: the ordering updates are
// predicated on the position column itself, which rules out write skew.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapError converts driver errors to the API taxonomy. conflictItem names
// the field reported for unique violations. Unknown errors are logged and
// sanitized to SERVER.
func (s *Store) mapError(err error, op, conflictItem string) error {
	if err == nil {
		return nil
	}
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound()
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && conflictItem != "" {
		return models.ErrConflict(conflictItem)
	}
	s.log.Error("database operation failed", "op", op, "error", err)
	return models.ErrServer("Database operation failed")
}
