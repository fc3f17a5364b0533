package solana

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of a Solana public key in bytes.
const PublicKeySize = 32

// Well-known program IDs.
const (
	TokenProgramID                  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenAccountProgramID = "ATokenGPvbdGVxr1b2hqsZBrFAiZ9NDbCfzGbTRWgPx"
)

// ErrInvalidPublicKey is returned when a string does not decode to a 32-byte key.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a 32-byte ed25519 public key or program-derived address.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	if s == "" {
		return pk, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is like ParsePublicKey but panics on error.
// Intended for package-level constants.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 encoding of the key.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// Bytes returns a copy of the raw key bytes.
func (pk PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeySize)
	copy(b, pk[:])
	return b
}
