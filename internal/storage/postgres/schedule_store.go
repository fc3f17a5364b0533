package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// ScheduleStore implements storage.ScheduleStore using PostgreSQL.
type ScheduleStore struct {
	db DBTX
}

// NewScheduleStore creates a new ScheduleStore.
func NewScheduleStore(db DBTX) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// Compile-time interface check.
var _ storage.ScheduleStore = (*ScheduleStore)(nil)

const scheduleColumns = `
	address, authority, beneficiary, mint, source_account, start_time, end_time,
	total_amount::text, claimed_amount::text, bump, created_at, last_claimed_at
`

// Insert adds a new schedule. Returns ErrDuplicateKey if address exists.
func (s *ScheduleStore) Insert(ctx context.Context, v *domain.VestingSchedule) error {
	if v == nil || v.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO vesting_schedules (
			address, authority, beneficiary, mint, source_account, start_time, end_time,
			total_amount, claimed_amount, bump, created_at, last_claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12)
	`

	_, err := s.db.Exec(ctx, query,
		v.Address,
		v.Authority,
		v.Beneficiary,
		v.Mint,
		v.SourceAccount,
		v.StartTime,
		v.EndTime,
		formatAmount(v.TotalAmount),
		formatAmount(v.ClaimedAmount),
		int16(v.Bump),
		v.CreatedAt,
		v.LastClaimedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByAddress retrieves a schedule by its address. Returns ErrNotFound if not exists.
func (s *ScheduleStore) GetByAddress(ctx context.Context, address string) (*domain.VestingSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM vesting_schedules WHERE address = $1`
	return s.getOne(ctx, query, address)
}

// GetForUpdate retrieves a schedule and locks its row until the transaction ends.
func (s *ScheduleStore) GetForUpdate(ctx context.Context, address string) (*domain.VestingSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM vesting_schedules WHERE address = $1 FOR UPDATE`
	return s.getOne(ctx, query, address)
}

func (s *ScheduleStore) getOne(ctx context.Context, query, address string) (*domain.VestingSchedule, error) {
	row := s.db.QueryRow(ctx, query, address)
	v, err := scanSchedule(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get schedule by address: %w", err)
	}
	return v, nil
}

// UpdateClaimed sets claimed_amount and last_claimed_at.
// The claimed amount may only grow and never past total_amount.
func (s *ScheduleStore) UpdateClaimed(ctx context.Context, address string, claimedAmount uint64, claimedAt int64) error {
	query := `
		UPDATE vesting_schedules
		SET claimed_amount = $2::numeric, last_claimed_at = $3
		WHERE address = $1
		  AND claimed_amount <= $2::numeric
		  AND total_amount >= $2::numeric
	`

	tag, err := s.db.Exec(ctx, query, address, formatAmount(claimedAmount), claimedAt)
	if err != nil {
		return fmt.Errorf("update claimed amount: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from a rejected value
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vesting_schedules WHERE address = $1)`, address).Scan(&exists); err != nil {
		return fmt.Errorf("check schedule exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrInvalidInput
}

// GetByAuthority retrieves all schedules created by authority.
func (s *ScheduleStore) GetByAuthority(ctx context.Context, authority string) ([]*domain.VestingSchedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM vesting_schedules
		WHERE authority = $1
		ORDER BY created_at ASC, address ASC
	`

	rows, err := s.db.Query(ctx, query, authority)
	if err != nil {
		return nil, fmt.Errorf("get schedules by authority: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// GetByBeneficiary retrieves all schedules vesting to beneficiary.
func (s *ScheduleStore) GetByBeneficiary(ctx context.Context, beneficiary string) ([]*domain.VestingSchedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM vesting_schedules
		WHERE beneficiary = $1
		ORDER BY created_at ASC, address ASC
	`

	rows, err := s.db.Query(ctx, query, beneficiary)
	if err != nil {
		return nil, fmt.Errorf("get schedules by beneficiary: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// scanSchedule scans a single row into a VestingSchedule.
func scanSchedule(row pgx.Row) (*domain.VestingSchedule, error) {
	var v domain.VestingSchedule
	var total, claimed string
	var bump int16

	err := row.Scan(
		&v.Address,
		&v.Authority,
		&v.Beneficiary,
		&v.Mint,
		&v.SourceAccount,
		&v.StartTime,
		&v.EndTime,
		&total,
		&claimed,
		&bump,
		&v.CreatedAt,
		&v.LastClaimedAt,
	)
	if err != nil {
		return nil, err
	}

	if v.TotalAmount, err = parseAmount(total); err != nil {
		return nil, err
	}
	if v.ClaimedAmount, err = parseAmount(claimed); err != nil {
		return nil, err
	}
	v.Bump = uint8(bump)
	return &v, nil
}

// scanSchedules scans multiple rows into a slice of VestingSchedule.
func scanSchedules(rows pgx.Rows) ([]*domain.VestingSchedule, error) {
	var schedules []*domain.VestingSchedule

	for rows.Next() {
		v, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		schedules = append(schedules, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule rows: %w", err)
	}

	return schedules, nil
}
