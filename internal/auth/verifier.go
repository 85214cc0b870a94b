package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// Ed25519Verifier checks age-verification attestations: an Ed25519 signature
// by the verifier key over exactly the raw account bytes.
type Ed25519Verifier struct {
	key ed25519.PublicKey
}

// NewEd25519Verifier wraps a 32-byte Ed25519 public key.
func NewEd25519Verifier(publicKey []byte) (*Ed25519Verifier, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key size: %d", len(publicKey))
	}
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, publicKey)
	return &Ed25519Verifier{key: key}, nil
}

// ParseVerifierKey decodes a hex-encoded verifier public key.
func ParseVerifierKey(s string) (*Ed25519Verifier, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode verifier key: %w", err)
	}
	return NewEd25519Verifier(b)
}

// Verify reports whether signature is valid for message. Malformed signatures
// are simply invalid.
func (v *Ed25519Verifier) Verify(message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(v.key, message, signature)
}

// PublicKey returns the configured key as hex.
func (v *Ed25519Verifier) PublicKey() string {
	return hex.EncodeToString(v.key)
}
