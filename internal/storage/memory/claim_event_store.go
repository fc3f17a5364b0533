package memory

import (
	"context"
	"sort"
	"sync"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// ClaimEventStore is an in-memory implementation of storage.ClaimEventStore.
type ClaimEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ClaimEvent // keyed by claim_id
}

// NewClaimEventStore creates a new in-memory claim event store.
func NewClaimEventStore() *ClaimEventStore {
	return &ClaimEventStore{
		data: make(map[string]*domain.ClaimEvent),
	}
}

// Insert adds a new claim event. Returns ErrDuplicateKey if claim_id exists.
func (s *ClaimEventStore) Insert(_ context.Context, e *domain.ClaimEvent) error {
	if e == nil || e.ClaimID == "" || e.ScheduleAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ClaimID]; exists {
		return storage.ErrDuplicateKey
	}

	eventCopy := *e
	s.data[e.ClaimID] = &eventCopy
	return nil
}

// GetBySchedule retrieves all claims of a schedule, ordered by claimed_total ASC.
func (s *ClaimEventStore) GetBySchedule(_ context.Context, scheduleAddress string) ([]*domain.ClaimEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClaimEvent
	for _, e := range s.data {
		if e.ScheduleAddress == scheduleAddress {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ClaimedTotal < result[j].ClaimedTotal
	})

	return result, nil
}

func (s *ClaimEventStore) snapshot() map[string]*domain.ClaimEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.ClaimEvent, len(s.data))
	for k, e := range s.data {
		eventCopy := *e
		snap[k] = &eventCopy
	}
	return snap
}

func (s *ClaimEventStore) restore(snap map[string]*domain.ClaimEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

// Verify interface compliance at compile time.
var _ storage.ClaimEventStore = (*ClaimEventStore)(nil)
