package postgres

import (
	"context"
	"fmt"
	"math"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// TokenAccountStore implements storage.TokenAccountStore using PostgreSQL.
type TokenAccountStore struct {
	db DBTX
}

// NewTokenAccountStore creates a new TokenAccountStore.
func NewTokenAccountStore(db DBTX) *TokenAccountStore {
	return &TokenAccountStore{db: db}
}

// Compile-time interface check.
var _ storage.TokenAccountStore = (*TokenAccountStore)(nil)

// Insert adds a new token account. Returns ErrDuplicateKey if address exists.
func (s *TokenAccountStore) Insert(ctx context.Context, a *domain.TokenAccount) error {
	if a == nil || a.Address == "" || a.Mint == "" || a.Owner == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_accounts (address, mint, owner, amount)
		VALUES ($1, $2, $3, $4::numeric)
	`

	_, err := s.db.Exec(ctx, query, a.Address, a.Mint, a.Owner, formatAmount(a.Amount))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token account: %w", err)
	}
	return nil
}

// GetByAddress retrieves a token account. Returns ErrNotFound if not exists.
func (s *TokenAccountStore) GetByAddress(ctx context.Context, address string) (*domain.TokenAccount, error) {
	query := `SELECT address, mint, owner, amount::text FROM token_accounts WHERE address = $1`

	var a domain.TokenAccount
	var amount string
	err := s.db.QueryRow(ctx, query, address).Scan(&a.Address, &a.Mint, &a.Owner, &amount)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token account: %w", err)
	}

	if a.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &a, nil
}

// Transfer moves amount between two accounts.
// Runs in its own transaction, or a savepoint when the store is bound to one.
func (s *TokenAccountStore) Transfer(ctx context.Context, from, to string, amount uint64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock both rows in address order to avoid deadlocks between opposite transfers
	rows, err := tx.Query(ctx, `
		SELECT address, amount::text
		FROM token_accounts
		WHERE address = ANY($1)
		ORDER BY address
		FOR UPDATE
	`, []string{from, to})
	if err != nil {
		return fmt.Errorf("lock token accounts: %w", err)
	}

	balances := make(map[string]uint64, 2)
	for rows.Next() {
		var addr, raw string
		if err := rows.Scan(&addr, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("scan token account: %w", err)
		}
		v, err := parseAmount(raw)
		if err != nil {
			rows.Close()
			return err
		}
		balances[addr] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate token accounts: %w", err)
	}

	src, ok := balances[from]
	if !ok {
		return storage.ErrNotFound
	}
	dst, ok := balances[to]
	if !ok {
		return storage.ErrNotFound
	}
	if src < amount {
		return storage.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	if dst > math.MaxUint64-amount {
		return storage.ErrInvalidInput
	}

	update := `UPDATE token_accounts SET amount = $2::numeric WHERE address = $1`
	if _, err := tx.Exec(ctx, update, from, formatAmount(src-amount)); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if _, err := tx.Exec(ctx, update, to, formatAmount(dst+amount)); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}
