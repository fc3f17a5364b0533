// Package ledger moves token balances between accounts on behalf of the vesting engine.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrAccountNotFound is returned when a token account does not exist.
	ErrAccountNotFound = errors.New("token account not found")

	// ErrMintMismatch is returned when an account is denominated in a different mint.
	ErrMintMismatch = errors.New("token account mint mismatch")

	// ErrOwnerMismatch is returned when the authorizer does not own the debited account.
	ErrOwnerMismatch = errors.New("token account owner mismatch")

	// ErrInsufficientFunds is returned when the debited account holds less than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero-amount transfers.
	ErrInvalidAmount = errors.New("invalid transfer amount")
)

// TransferRequest moves Amount of Mint from From to To, authorized by AuthorizedBy.
type TransferRequest struct {
	From         string
	To           string
	Mint         string
	Amount       uint64
	AuthorizedBy string
}

// TokenLedger is the asset-transfer collaborator of the vesting engine.
type TokenLedger interface {
	// VerifyAccount reports whether account exists, is owned by owner and holds mint.
	VerifyAccount(ctx context.Context, account, owner, mint string) (bool, error)

	// Transfer moves tokens. It either fully succeeds or changes nothing.
	Transfer(ctx context.Context, req TransferRequest) error
}
