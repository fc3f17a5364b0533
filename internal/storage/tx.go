package storage

import "context"

// Stores groups the stores a transaction operates on.
type Stores struct {
	Schedules     ScheduleStore
	Claims        ClaimEventStore
	TokenAccounts TokenAccountStore
}

// Transactor runs functions atomically.
type Transactor interface {
	// InTx calls fn with stores bound to a single transaction.
	// If fn returns an error, none of its writes are kept and the error is returned as is.
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
