// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"solana-vesting/internal/solana"
)

// RPCClient implements solana.RPCClient over maps.
type RPCClient struct {
	mu         sync.RWMutex
	tokens     map[string]solana.TokenAccount
	foreign    map[string]string // address -> owning program
	slot       uint64
	blockTimes map[uint64]int64
}

// NewRPCClient creates an empty stub.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		tokens:     make(map[string]solana.TokenAccount),
		foreign:    make(map[string]string),
		blockTimes: make(map[uint64]int64),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// PutTokenAccount registers an initialized SPL token account at address.
func (c *RPCClient) PutTokenAccount(address string, mint, owner solana.PublicKey, amount uint64) {
	c.SetTokenAccount(address, solana.TokenAccount{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  solana.TokenAccountInitialized,
	})
}

// SetTokenAccount stores acct at address as is.
func (c *RPCClient) SetTokenAccount(address string, acct solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[address] = acct
}

// PutForeignAccount registers an account owned by a program other than the token program.
func (c *RPCClient) PutForeignAccount(address, program string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.foreign[address] = program
}

// SetSlot sets the latest slot.
func (c *RPCClient) SetSlot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

// SetBlockTime records the timestamp of slot without moving the latest slot.
func (c *RPCClient) SetBlockTime(slot uint64, unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockTimes[slot] = unix
}

// GetTokenAccount returns the stored token account.
func (c *RPCClient) GetTokenAccount(_ context.Context, address string) (*solana.TokenAccount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if program, ok := c.foreign[address]; ok {
		return nil, fmt.Errorf("%w: %s is owned by %s", solana.ErrNotTokenAccount, address, program)
	}
	acct, ok := c.tokens[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", solana.ErrAccountNotFound, address)
	}
	return &acct, nil
}

// GetSlot returns the latest slot.
func (c *RPCClient) GetSlot(context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slot, nil
}

// GetBlockTime returns the recorded timestamp of slot.
func (c *RPCClient) GetBlockTime(_ context.Context, slot uint64) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ts, ok := c.blockTimes[slot]
	if !ok {
		return 0, fmt.Errorf("%w: slot %d", solana.ErrBlockTimeUnavailable, slot)
	}
	return ts, nil
}
