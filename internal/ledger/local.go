package ledger

import (
	"context"
	"errors"
	"fmt"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

// Local is a TokenLedger over a storage.TokenAccountStore.
// Bound to a transaction's stores, its transfers commit or roll back with it.
type Local struct {
	accounts storage.TokenAccountStore
}

// NewLocal creates a Local ledger.
func NewLocal(accounts storage.TokenAccountStore) *Local {
	return &Local{accounts: accounts}
}

var _ TokenLedger = (*Local)(nil)

// VerifyAccount reports whether account is owned by owner and holds mint.
func (l *Local) VerifyAccount(ctx context.Context, account, owner, mint string) (bool, error) {
	acct, err := l.accounts.GetByAddress(ctx, account)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get token account %s: %w", account, err)
	}
	return acct.Owner == owner && acct.Mint == mint, nil
}

// Transfer moves req.Amount from req.From to req.To.
func (l *Local) Transfer(ctx context.Context, req TransferRequest) error {
	if req.Amount == 0 {
		return ErrInvalidAmount
	}

	from, err := l.lookup(ctx, req.From)
	if err != nil {
		return err
	}
	to, err := l.lookup(ctx, req.To)
	if err != nil {
		return err
	}

	if from.Mint != req.Mint || to.Mint != req.Mint {
		return ErrMintMismatch
	}
	if from.Owner != req.AuthorizedBy {
		return ErrOwnerMismatch
	}

	if err := l.accounts.Transfer(ctx, req.From, req.To, req.Amount); err != nil {
		switch {
		case errors.Is(err, storage.ErrInsufficientFunds):
			return ErrInsufficientFunds
		case errors.Is(err, storage.ErrNotFound):
			return ErrAccountNotFound
		}
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

func (l *Local) lookup(ctx context.Context, address string) (*domain.TokenAccount, error) {
	acct, err := l.accounts.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("get token account %s: %w", address, err)
	}
	return acct, nil
}
