package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
)

//go:embed schema.sql
var schema string

// PostgresStore is a Postgres implementation of the UnitOfWork port. Every
// Execute call runs inside one pgx transaction; the repository handles made
// available to the work function are bound to that transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and applies the embedded schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is still alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Execute opens one transaction, invokes work exactly once with handles
// bound to it, and commits on normal return. Cancellation or a work error
// rolls the whole unit back; no partial commits are possible.
func (s *PostgresStore) Execute(ctx context.Context, work func(ctx context.Context, repos ports.RepositoryContext) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback after a successful commit is a no-op; this guards every other
	// exit path, panics included.
	defer tx.Rollback(ctx) //nolint:errcheck

	repos := &pgRepositoryContext{tx: tx}
	if err := work(ctx, repos); err != nil {
		if repos.cancelled {
			return core.ErrCancelled
		}
		return err
	}
	if repos.cancelled {
		return core.ErrCancelled
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgRepositoryContext struct {
	tx        pgx.Tx
	cancelled bool
}

func (c *pgRepositoryContext) Users() ports.Users       { return &pgUsers{tx: c.tx} }
func (c *pgRepositoryContext) AuditLog() ports.AuditLog { return &pgAuditLog{tx: c.tx} }
func (c *pgRepositoryContext) Cancel()                  { c.cancelled = true }

var _ ports.UnitOfWork = (*PostgresStore)(nil)
