package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// ClaimEventStore implements storage.ClaimEventStore using PostgreSQL.
type ClaimEventStore struct {
	db DBTX
}

// NewClaimEventStore creates a new ClaimEventStore.
func NewClaimEventStore(db DBTX) *ClaimEventStore {
	return &ClaimEventStore{db: db}
}

// Compile-time interface check.
var _ storage.ClaimEventStore = (*ClaimEventStore)(nil)

// Insert adds a new claim event. Returns ErrDuplicateKey if claim_id exists.
func (s *ClaimEventStore) Insert(ctx context.Context, e *domain.ClaimEvent) error {
	if e == nil || e.ClaimID == "" || e.ScheduleAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO claim_events (
			claim_id, schedule_address, authority, beneficiary, mint,
			source_account, destination_account, amount, claimed_total, claimed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11)
	`

	_, err := s.db.Exec(ctx, query,
		e.ClaimID,
		e.ScheduleAddress,
		e.Authority,
		e.Beneficiary,
		e.Mint,
		e.SourceAccount,
		e.DestinationAccount,
		formatAmount(e.Amount),
		formatAmount(e.ClaimedTotal),
		e.ClaimedAt,
		e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert claim event: %w", err)
	}
	return nil
}

// GetBySchedule retrieves all claims of a schedule, ordered by claimed_total ASC.
func (s *ClaimEventStore) GetBySchedule(ctx context.Context, scheduleAddress string) ([]*domain.ClaimEvent, error) {
	query := `
		SELECT claim_id, schedule_address, authority, beneficiary, mint,
		       source_account, destination_account, amount::text, claimed_total::text, claimed_at, created_at
		FROM claim_events
		WHERE schedule_address = $1
		ORDER BY claimed_total ASC
	`

	rows, err := s.db.Query(ctx, query, scheduleAddress)
	if err != nil {
		return nil, fmt.Errorf("get claim events by schedule: %w", err)
	}
	defer rows.Close()

	return scanClaimEvents(rows)
}

// scanClaimEvents scans multiple rows into a slice of ClaimEvent.
func scanClaimEvents(rows pgx.Rows) ([]*domain.ClaimEvent, error) {
	var events []*domain.ClaimEvent

	for rows.Next() {
		var e domain.ClaimEvent
		var amount, claimedTotal string

		err := rows.Scan(
			&e.ClaimID,
			&e.ScheduleAddress,
			&e.Authority,
			&e.Beneficiary,
			&e.Mint,
			&e.SourceAccount,
			&e.DestinationAccount,
			&amount,
			&claimedTotal,
			&e.ClaimedAt,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan claim event row: %w", err)
		}

		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if e.ClaimedTotal, err = parseAmount(claimedTotal); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim event rows: %w", err)
	}

	return events, nil
}
