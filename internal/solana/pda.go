package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Seed limits enforced by the runtime.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrMaxSeedLengthExceeded is returned when a seed is longer than MaxSeedLength.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrInvalidSeeds is returned when the derived hash lands on the ed25519 curve.
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")

	// ErrNoViableBump is returned when no bump in [0, 255] yields an off-curve address.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress derives a program address from seeds (bump included) and programID.
// Returns ErrInvalidSeeds if the result is a valid curve point, since such an
// address could have a private key.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return PublicKey{}, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out PublicKey
	copy(out[:], h.Sum(nil))

	if IsOnCurve(out[:]) {
		return PublicKey{}, ErrInvalidSeeds
	}
	return out, nil
}

// FindProgramAddress searches bump seeds from 255 downward and returns the
// first off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b is the compressed encoding of a valid ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// FindAssociatedTokenAddress returns the associated token account of owner for mint.
func FindAssociatedTokenAddress(owner, mint PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(
		[][]byte{owner[:], MustPublicKey(TokenProgramID).Bytes(), mint[:]},
		MustPublicKey(AssociatedTokenAccountProgramID),
	)
}
