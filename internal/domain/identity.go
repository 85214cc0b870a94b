package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// AccountID is the raw platform account identifier. Its bytes are exactly what
// the age verifier signs.
type AccountID []byte

// ParseAccountID decodes a hex-encoded account identifier.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return nil, fmt.Errorf("account is required")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("account must be hex encoded: %w", err)
	}
	return AccountID(b), nil
}

func (a AccountID) String() string { return hex.EncodeToString(a) }

// IdentitySize is the byte length of an IdentityKey.
const IdentitySize = sha256.Size

// IdentityKey is the stable per-participant primary key, SHA-256 of the account bytes.
type IdentityKey [IdentitySize]byte

// DeriveIdentityKey hashes an account identifier into its IdentityKey.
func DeriveIdentityKey(account AccountID) IdentityKey {
	return IdentityKey(sha256.Sum256(account))
}

// IdentityKeyFromBytes converts a stored key back into an IdentityKey.
func IdentityKeyFromBytes(b []byte) (IdentityKey, error) {
	var id IdentityKey
	if len(b) != IdentitySize {
		return id, fmt.Errorf("identity key must be %d bytes, got %d", IdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id IdentityKey) String() string { return hex.EncodeToString(id[:]) }

// Bytes returns a copy of the key as a slice.
func (id IdentityKey) Bytes() []byte {
	b := make([]byte, IdentitySize)
	copy(b, id[:])
	return b
}

func (id IdentityKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}
