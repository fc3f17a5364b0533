// Package clock supplies the current time used for vesting calculations.
package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"solana-vesting/internal/solana"
)

// Clock returns the current unix time in seconds.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// System reads the local wall clock.
type System struct{}

// Now returns the local unix time.
func (System) Now(context.Context) (int64, error) {
	return time.Now().Unix(), nil
}

// Manual is a settable clock for tests and offline tools.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual creates a Manual clock set to now.
func NewManual(now int64) *Manual {
	return &Manual{now: now}
}

// Now returns the configured time.
func (m *Manual) Now(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now, nil
}

// Set sets the current time.
func (m *Manual) Set(now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Advance moves the clock forward by d seconds.
func (m *Manual) Advance(d int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
}

// MaxSkippedSlots bounds how far Chain walks back from the latest slot
// looking for one with a block time.
const MaxSkippedSlots = 16

// Chain reads the block time of the latest slot, matching the on-chain clock.
type Chain struct {
	rpc solana.RPCClient
}

// NewChain creates a Chain clock backed by rpc.
func NewChain(rpc solana.RPCClient) *Chain {
	return &Chain{rpc: rpc}
}

// Now returns the block time of the newest slot that has one.
// Skipped slots have no block; up to MaxSkippedSlots of them are stepped over.
func (c *Chain) Now(ctx context.Context) (int64, error) {
	latest, err := c.rpc.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}

	var lastErr error
	for back := uint64(0); back <= MaxSkippedSlots && back <= latest; back++ {
		ts, err := c.rpc.GetBlockTime(ctx, latest-back)
		if err == nil {
			return ts, nil
		}
		if !errors.Is(err, solana.ErrBlockTimeUnavailable) {
			return 0, fmt.Errorf("get block time for slot %d: %w", latest-back, err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("no block time within %d slots of %d: %w", MaxSkippedSlots, latest, lastErr)
}

var (
	_ Clock = System{}
	_ Clock = (*Manual)(nil)
	_ Clock = (*Chain)(nil)
)
