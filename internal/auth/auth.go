// Package auth verifies ed25519-signed requests and issues Signer capabilities.
//
// A request is authorized by signing the canonical message
//
//	<operation>|<field1>|...|<fieldN>|<expires_at>
//
// with the private key of the claimed identity. Only Verify can produce a
// Signer whose Verified method reports true.
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"solana-vesting/internal/solana"
)

// Operations covered by signatures.
const (
	OpCreateSchedule = "create_schedule"
	OpClaim          = "claim"
)

var (
	// ErrMissingSignature is returned when the request carries no signature.
	ErrMissingSignature = errors.New("missing signature")

	// ErrInvalidSigner is returned when the signer is not a valid public key.
	ErrInvalidSigner = errors.New("invalid signer")

	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpired is returned when the signature has expired.
	ErrExpired = errors.New("signature expired")
)

// SignedRequest is the proof of control a caller attaches to an operation.
type SignedRequest struct {
	Signer    string `json:"signer"`     // base58 public key
	Signature string `json:"signature"`  // base58 ed25519 signature over Message
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}

// Signer is a verified identity.
// The zero value is unverified.
type Signer struct {
	key      string
	verified bool
}

// Key returns the base58 public key of the signer.
func (s Signer) Key() string {
	return s.key
}

// Verified reports whether the signer was produced by Verify.
func (s Signer) Verified() bool {
	return s.verified && s.key != ""
}

// Message builds the canonical message for op over fields.
func Message(op string, fields []string, expiresAt int64) []byte {
	parts := make([]string, 0, len(fields)+2)
	parts = append(parts, op)
	parts = append(parts, fields...)
	parts = append(parts, strconv.FormatInt(expiresAt, 10))
	return []byte(strings.Join(parts, "|"))
}

// Verify checks req against the canonical message for op and fields at time now.
func Verify(op string, fields []string, req SignedRequest, now int64) (Signer, error) {
	if req.Signature == "" {
		return Signer{}, ErrMissingSignature
	}

	pk, err := solana.ParsePublicKey(req.Signer)
	if err != nil {
		return Signer{}, fmt.Errorf("%w: %v", ErrInvalidSigner, err)
	}

	sig, err := base58.Decode(req.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return Signer{}, fmt.Errorf("%w: malformed", ErrInvalidSignature)
	}

	if now > req.ExpiresAt {
		return Signer{}, ErrExpired
	}

	if !ed25519.Verify(ed25519.PublicKey(pk.Bytes()), Message(op, fields, req.ExpiresAt), sig) {
		return Signer{}, ErrInvalidSignature
	}

	return Signer{key: pk.String(), verified: true}, nil
}

// Sign produces a SignedRequest for op over fields.
func Sign(priv ed25519.PrivateKey, op string, fields []string, expiresAt int64) SignedRequest {
	pub := priv.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(priv, Message(op, fields, expiresAt))
	return SignedRequest{
		Signer:    base58.Encode(pub),
		Signature: base58.Encode(sig),
		ExpiresAt: expiresAt,
	}
}

// ParsePrivateKey decodes a base58 64-byte ed25519 private key (the Solana keypair format).
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key length %d, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}
