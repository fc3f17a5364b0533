package memory

import (
	"context"
	"math"
	"sync"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// TokenAccountStore is an in-memory implementation of storage.TokenAccountStore.
type TokenAccountStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenAccount // keyed by address
}

// NewTokenAccountStore creates a new in-memory token account store.
func NewTokenAccountStore() *TokenAccountStore {
	return &TokenAccountStore{
		data: make(map[string]*domain.TokenAccount),
	}
}

// Insert adds a new token account. Returns ErrDuplicateKey if address exists.
func (s *TokenAccountStore) Insert(_ context.Context, a *domain.TokenAccount) error {
	if a == nil || a.Address == "" || a.Mint == "" || a.Owner == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.Address]; exists {
		return storage.ErrDuplicateKey
	}

	accountCopy := *a
	s.data[a.Address] = &accountCopy
	return nil
}

// GetByAddress retrieves a token account. Returns ErrNotFound if not exists.
func (s *TokenAccountStore) GetByAddress(_ context.Context, address string) (*domain.TokenAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	accountCopy := *a
	return &accountCopy, nil
}

// Transfer moves amount between two accounts.
func (s *TokenAccountStore) Transfer(_ context.Context, from, to string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.data[from]
	if !ok {
		return storage.ErrNotFound
	}
	dst, ok := s.data[to]
	if !ok {
		return storage.ErrNotFound
	}
	if src.Amount < amount {
		return storage.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return storage.ErrInvalidInput
	}

	src.Amount -= amount
	dst.Amount += amount
	return nil
}

func (s *TokenAccountStore) snapshot() map[string]*domain.TokenAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.TokenAccount, len(s.data))
	for k, a := range s.data {
		accountCopy := *a
		snap[k] = &accountCopy
	}
	return snap
}

func (s *TokenAccountStore) restore(snap map[string]*domain.TokenAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

// Verify interface compliance at compile time.
var _ storage.TokenAccountStore = (*TokenAccountStore)(nil)
