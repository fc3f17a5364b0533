package memory

import (
	"context"
	"sync"

	"solana-vesting/internal/storage"
)

// Backend bundles the in-memory stores and implements storage.Transactor.
// Transactions are serialized by a single mutex; a failed transaction
// restores the snapshot taken when it began.
type Backend struct {
	mu            sync.Mutex
	Schedules     *ScheduleStore
	Claims        *ClaimEventStore
	TokenAccounts *TokenAccountStore
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		Schedules:     NewScheduleStore(),
		Claims:        NewClaimEventStore(),
		TokenAccounts: NewTokenAccountStore(),
	}
}

// InTx runs fn while holding the backend lock.
func (b *Backend) InTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	schedules := b.Schedules.snapshot()
	claims := b.Claims.snapshot()
	accounts := b.TokenAccounts.snapshot()

	err := fn(ctx, storage.Stores{
		Schedules:     b.Schedules,
		Claims:        b.Claims,
		TokenAccounts: b.TokenAccounts,
	})
	if err != nil {
		b.Schedules.restore(schedules)
		b.Claims.restore(claims)
		b.TokenAccounts.restore(accounts)
		return err
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.Transactor = (*Backend)(nil)
