package storage

import (
	"context"

	"solana-vesting/internal/domain"
)

// ScheduleStore provides access to vesting_schedules storage.
type ScheduleStore interface {
	// Insert adds a new schedule. Returns ErrDuplicateKey if address exists.
	Insert(ctx context.Context, s *domain.VestingSchedule) error

	// GetByAddress retrieves a schedule by its address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.VestingSchedule, error)

	// GetForUpdate is GetByAddress that also locks the schedule until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, address string) (*domain.VestingSchedule, error)

	// UpdateClaimed sets claimed_amount and last_claimed_at.
	// Returns ErrNotFound if not exists, ErrInvalidInput if claimedAmount decreases or exceeds total_amount.
	UpdateClaimed(ctx context.Context, address string, claimedAmount uint64, claimedAt int64) error

	// GetByAuthority retrieves all schedules created by authority, ordered by created_at ASC.
	GetByAuthority(ctx context.Context, authority string) ([]*domain.VestingSchedule, error)

	// GetByBeneficiary retrieves all schedules vesting to beneficiary, ordered by created_at ASC.
	GetByBeneficiary(ctx context.Context, beneficiary string) ([]*domain.VestingSchedule, error)
}

// ClaimEventStore provides access to claim_events storage.
type ClaimEventStore interface {
	// Insert adds a new claim event. Returns ErrDuplicateKey if claim_id exists.
	Insert(ctx context.Context, e *domain.ClaimEvent) error

	// GetBySchedule retrieves all claims of a schedule, ordered by claimed_total ASC.
	GetBySchedule(ctx context.Context, scheduleAddress string) ([]*domain.ClaimEvent, error)
}

// TokenAccountStore provides access to token_accounts storage.
type TokenAccountStore interface {
	// Insert adds a new token account. Returns ErrDuplicateKey if address exists.
	Insert(ctx context.Context, a *domain.TokenAccount) error

	// GetByAddress retrieves a token account. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.TokenAccount, error)

	// Transfer moves amount from one account to another.
	// Returns ErrNotFound if either account is missing, ErrInsufficientFunds if from holds less than amount.
	Transfer(ctx context.Context, from, to string, amount uint64) error
}

// ClaimAnalyticsStore provides access to the claim_events analytics mirror.
type ClaimAnalyticsStore interface {
	// Insert appends a claim event.
	Insert(ctx context.Context, e *domain.ClaimEvent) error

	// TotalClaimedByMint returns the sum of claimed amounts for a mint.
	TotalClaimedByMint(ctx context.Context, mint string) (uint64, error)
}
