package memory

import (
	"context"
	"sort"
	"sync"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// ScheduleStore is an in-memory implementation of storage.ScheduleStore.
type ScheduleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.VestingSchedule // keyed by address
}

// NewScheduleStore creates a new in-memory schedule store.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		data: make(map[string]*domain.VestingSchedule),
	}
}

// Insert adds a new schedule. Returns ErrDuplicateKey if address exists.
func (s *ScheduleStore) Insert(_ context.Context, v *domain.VestingSchedule) error {
	if v == nil || v.Address == "" || v.ClaimedAmount > v.TotalAmount {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[v.Address]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[v.Address] = copySchedule(v)
	return nil
}

// GetByAddress retrieves a schedule by its address. Returns ErrNotFound if not exists.
func (s *ScheduleStore) GetByAddress(_ context.Context, address string) (*domain.VestingSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySchedule(v), nil
}

// GetForUpdate retrieves a schedule by its address.
// Writers are serialized by Backend.InTx, so no row lock is taken.
func (s *ScheduleStore) GetForUpdate(ctx context.Context, address string) (*domain.VestingSchedule, error) {
	return s.GetByAddress(ctx, address)
}

// UpdateClaimed sets claimed_amount and last_claimed_at.
func (s *ScheduleStore) UpdateClaimed(_ context.Context, address string, claimedAmount uint64, claimedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.data[address]
	if !exists {
		return storage.ErrNotFound
	}
	if claimedAmount < v.ClaimedAmount || claimedAmount > v.TotalAmount {
		return storage.ErrInvalidInput
	}

	v.ClaimedAmount = claimedAmount
	v.LastClaimedAt = &claimedAt
	return nil
}

// GetByAuthority retrieves all schedules created by authority.
func (s *ScheduleStore) GetByAuthority(_ context.Context, authority string) ([]*domain.VestingSchedule, error) {
	return s.filter(func(v *domain.VestingSchedule) bool { return v.Authority == authority }), nil
}

// GetByBeneficiary retrieves all schedules vesting to beneficiary.
func (s *ScheduleStore) GetByBeneficiary(_ context.Context, beneficiary string) ([]*domain.VestingSchedule, error) {
	return s.filter(func(v *domain.VestingSchedule) bool { return v.Beneficiary == beneficiary }), nil
}

func (s *ScheduleStore) filter(match func(*domain.VestingSchedule) bool) []*domain.VestingSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VestingSchedule
	for _, v := range s.data {
		if match(v) {
			result = append(result, copySchedule(v))
		}
	}

	// Sort by created_at ASC, address ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Address < result[j].Address
	})

	return result
}

func (s *ScheduleStore) snapshot() map[string]*domain.VestingSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.VestingSchedule, len(s.data))
	for k, v := range s.data {
		snap[k] = copySchedule(v)
	}
	return snap
}

func (s *ScheduleStore) restore(snap map[string]*domain.VestingSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

func copySchedule(v *domain.VestingSchedule) *domain.VestingSchedule {
	c := *v
	if v.LastClaimedAt != nil {
		at := *v.LastClaimedAt
		c.LastClaimedAt = &at
	}
	return &c
}

// Verify interface compliance at compile time.
var _ storage.ScheduleStore = (*ScheduleStore)(nil)
