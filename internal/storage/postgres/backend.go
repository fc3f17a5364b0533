package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-vesting/internal/observability"
	"solana-vesting/internal/storage"
)

// Backend implements storage.Transactor on a Postgres pool.
type Backend struct {
	pool *Pool
}

// NewBackend creates a Backend using pool.
func NewBackend(pool *Pool) *Backend {
	return &Backend{pool: pool}
}

// Compile-time interface check.
var _ storage.Transactor = (*Backend)(nil)

// Stores returns stores bound to db.
func Stores(db DBTX) storage.Stores {
	return storage.Stores{
		Schedules:     NewScheduleStore(db),
		Claims:        NewClaimEventStore(db),
		TokenAccounts: NewTokenAccountStore(db),
	}
}

// InTx runs fn in a read-committed transaction.
// Schedule rows read with GetForUpdate stay locked until commit or rollback.
func (b *Backend) InTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	start := time.Now()

	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		observability.RecordDBQuery("postgres", "begin", time.Since(start).Seconds(), err)
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, Stores(tx)); err != nil {
		_ = tx.Rollback(ctx)
		observability.RecordDBQuery("postgres", "rollback", time.Since(start).Seconds(), nil)
		return err
	}

	err = tx.Commit(ctx)
	observability.RecordDBQuery("postgres", "commit", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
