package solana

import (
	"encoding/binary"
	"fmt"
)

// TokenAccountSize is the length of an SPL token account.
const TokenAccountSize = 165

// SPL token account layout offsets.
// mint(32) | owner(32) | amount(8) | delegate(36) | state(1) | ...
const (
	tokenMintOffset   = 0
	tokenOwnerOffset  = 32
	tokenAmountOffset = 64
	tokenStateOffset  = 108

	// TokenAccountPrefixLen is how many leading bytes ParseTokenAccount reads.
	// RPC queries request only this slice of the account.
	TokenAccountPrefixLen = tokenStateOffset + 1
)

// TokenAccountState is the SPL account state byte.
type TokenAccountState uint8

// Token account states.
const (
	TokenAccountUninitialized TokenAccountState = 0
	TokenAccountInitialized   TokenAccountState = 1
	TokenAccountFrozen        TokenAccountState = 2
)

func (s TokenAccountState) String() string {
	switch s {
	case TokenAccountUninitialized:
		return "uninitialized"
	case TokenAccountInitialized:
		return "initialized"
	case TokenAccountFrozen:
		return "frozen"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// TokenAccount holds the fields of an SPL token account the vesting service reads.
type TokenAccount struct {
	Mint   PublicKey
	Owner  PublicKey
	Amount uint64
	State  TokenAccountState
}

// CanReceive reports whether transfers into the account can succeed.
func (a *TokenAccount) CanReceive() bool {
	return a.State == TokenAccountInitialized
}

// ParseTokenAccount parses the leading TokenAccountPrefixLen bytes of SPL token account data.
func ParseTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountPrefixLen {
		return nil, fmt.Errorf("token account data too short: %d", len(data))
	}

	var acct TokenAccount
	copy(acct.Mint[:], data[tokenMintOffset:tokenOwnerOffset])
	copy(acct.Owner[:], data[tokenOwnerOffset:tokenAmountOffset])
	acct.Amount = binary.LittleEndian.Uint64(data[tokenAmountOffset : tokenAmountOffset+8])
	acct.State = TokenAccountState(data[tokenStateOffset])
	return &acct, nil
}

// EncodeTokenAccount writes a full SPL token account with no delegate or close authority.
func EncodeTokenAccount(acct *TokenAccount) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[tokenMintOffset:], acct.Mint[:])
	copy(data[tokenOwnerOffset:], acct.Owner[:])
	binary.LittleEndian.PutUint64(data[tokenAmountOffset:], acct.Amount)
	data[tokenStateOffset] = byte(acct.State)
	return data
}
