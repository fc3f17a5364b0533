package ledger

import (
	"context"
	"errors"
	"fmt"

	"solana-vesting/internal/solana"
)

// ChainVerified checks accounts against on-chain SPL token state
// and delegates transfers to the wrapped ledger.
type ChainVerified struct {
	rpc  solana.RPCClient
	next TokenLedger
}

// NewChainVerified creates a ChainVerified ledger.
func NewChainVerified(rpc solana.RPCClient, next TokenLedger) *ChainVerified {
	return &ChainVerified{rpc: rpc, next: next}
}

var _ TokenLedger = (*ChainVerified)(nil)

// VerifyAccount reports whether account is an initialized token account of owner for mint.
// Missing, foreign and frozen accounts verify as false without error.
func (c *ChainVerified) VerifyAccount(ctx context.Context, account, owner, mint string) (bool, error) {
	acct, err := c.rpc.GetTokenAccount(ctx, account)
	switch {
	case errors.Is(err, solana.ErrAccountNotFound), errors.Is(err, solana.ErrNotTokenAccount):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("get token account %s: %w", account, err)
	}
	if !acct.CanReceive() {
		return false, nil
	}
	return acct.Owner.String() == owner && acct.Mint.String() == mint, nil
}

// Transfer verifies the debited account on chain and then delegates.
func (c *ChainVerified) Transfer(ctx context.Context, req TransferRequest) error {
	ok, err := c.VerifyAccount(ctx, req.From, req.AuthorizedBy, req.Mint)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOwnerMismatch
	}
	return c.next.Transfer(ctx, req)
}
