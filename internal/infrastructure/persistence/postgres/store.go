package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
)

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides the PostgreSQL implementation of the scheduler ports:
// definitions, the generation ledger, and project creation.
type Store struct {
	pool *pgxpool.Pool
	db   dbtx
}

// Compile-time verification that Store implements all scheduler ports.
var (
	_ scheduler.DefinitionRepository = (*Store)(nil)
	_ scheduler.Ledger               = (*Store)(nil)
	_ scheduler.ProjectCreator       = (*Store)(nil)
)

// NewStore creates a new PostgreSQL store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		db:   pool,
	}
}

// Pool exposes the connection pool for test cleanup.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// definitionTxOptions relies on the version predicate in each UPDATE to reject
// stale writers.
var definitionTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// executeInTransaction runs fn against a Store bound to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
func (s *Store) executeInTransaction(ctx context.Context, operation string, fn func(tx *Store) error) (err error) {
	started := time.Now().UTC()
	log := slog.With("operation", operation)

	tx, err := s.pool.BeginTx(ctx, definitionTxOptions)
	if err != nil {
		log.ErrorContext(ctx, "failed to begin transaction", "error", err)
		return fmt.Errorf("%s: failed to begin transaction: %w", operation, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		p := recover()
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.ErrorContext(ctx, "rollback failed", "error", err, "rollback_error", rbErr, "panic", p)
			if err != nil {
				err = fmt.Errorf("%w (rollback error: %v)", err, rbErr)
			}
		}
		if p != nil {
			panic(p)
		}
	}()

	if err = fn(&Store{pool: s.pool, db: tx}); err != nil {
		log.DebugContext(ctx, "transaction rolled back", "error", err)
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		log.ErrorContext(ctx, "transaction commit failed", "error", err)
		return fmt.Errorf("%s: failed to commit: %w", operation, err)
	}
	committed = true

	log.DebugContext(ctx, "transaction committed", "duration_ms", time.Since(started).Milliseconds())
	return nil
}
