package solana

import (
	"context"
	"errors"
)

// Commitment is the bank state an RPC query reads from.
type Commitment string

// Commitment levels accepted by the RPC API.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

var (
	// ErrAccountNotFound is returned when no account exists at the address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotTokenAccount is returned when the account exists but the token program does not own it.
	ErrNotTokenAccount = errors.New("not an spl token account")

	// ErrBlockTimeUnavailable is returned when the node has no timestamp for a slot,
	// either because the slot was skipped or its block is not available yet.
	ErrBlockTimeUnavailable = errors.New("block time unavailable")
)

// RPCClient is the chain state the vesting service reads: token accounts for
// ownership checks and block times for the chain clock.
type RPCClient interface {
	// GetTokenAccount fetches and decodes the SPL token account at address.
	// Returns ErrAccountNotFound or ErrNotTokenAccount when there is no token account to decode.
	GetTokenAccount(ctx context.Context, address string) (*TokenAccount, error)

	// GetSlot returns the latest slot at the client's commitment.
	GetSlot(ctx context.Context) (uint64, error)

	// GetBlockTime returns the unix timestamp of slot.
	// Returns ErrBlockTimeUnavailable if the node has none.
	GetBlockTime(ctx context.Context, slot uint64) (int64, error)
}
