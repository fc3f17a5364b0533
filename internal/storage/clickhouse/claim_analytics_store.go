package clickhouse

import (
	"context"
	"fmt"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// ClaimAnalyticsStore implements storage.ClaimAnalyticsStore using ClickHouse.
type ClaimAnalyticsStore struct {
	conn *Conn
}

// NewClaimAnalyticsStore creates a new ClaimAnalyticsStore.
func NewClaimAnalyticsStore(conn *Conn) *ClaimAnalyticsStore {
	return &ClaimAnalyticsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ClaimAnalyticsStore = (*ClaimAnalyticsStore)(nil)

// Insert appends a claim event.
// Re-sending an event is harmless: rows with the same (schedule_address, claimed_total) collapse on merge.
func (s *ClaimAnalyticsStore) Insert(ctx context.Context, e *domain.ClaimEvent) error {
	if e == nil || e.ClaimID == "" || e.ScheduleAddress == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO claim_events (
			claim_id, schedule_address, authority, beneficiary, mint,
			source_account, destination_account, amount, claimed_total, claimed_at, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.ClaimID, e.ScheduleAddress, e.Authority, e.Beneficiary, e.Mint,
		e.SourceAccount, e.DestinationAccount, e.Amount, e.ClaimedTotal, e.ClaimedAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// TotalClaimedByMint returns the sum of claimed amounts for a mint.
func (s *ClaimAnalyticsStore) TotalClaimedByMint(ctx context.Context, mint string) (uint64, error) {
	query := `
		SELECT sum(amount)
		FROM claim_events FINAL
		WHERE mint = ?
	`

	var total uint64
	if err := s.conn.QueryRow(ctx, query, mint).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum claimed by mint: %w", err)
	}
	return total, nil
}
