package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) ed25519.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = b
	return ed25519.NewKeyFromSeed(seed)
}

func TestEd25519Verifier(t *testing.T) {
	priv := testKey(1)
	v, err := NewEd25519Verifier(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)

	account := []byte("alice")
	sig := ed25519.Sign(priv, account)

	tests := []struct {
		name string
		msg  []byte
		sig  []byte
		want bool
	}{
		{"valid", account, sig, true},
		{"different message", []byte("bob"), sig, false},
		{"signed by another key", account, ed25519.Sign(testKey(2), account), false},
		{"short signature", account, sig[:10], false},
		{"empty signature", account, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(tt.msg, tt.sig))
		})
	}
}

func TestParseVerifierKey(t *testing.T) {
	pub := testKey(1).Public().(ed25519.PublicKey)

	v, err := ParseVerifierKey(" " + hex.EncodeToString(pub) + "\n")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(pub), v.PublicKey())

	_, err = ParseVerifierKey("zz")
	assert.ErrorContains(t, err, "decode verifier key")

	_, err = ParseVerifierKey("abcd")
	assert.ErrorContains(t, err, "invalid ed25519 public key size: 2")
}
