package domain

import (
	"encoding/hex"
	"fmt"
	"regexp"
)

var platformIDRegex = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,64}$`)

// ValidatePlatformID checks a platform identifier.
func ValidatePlatformID(platformID string) error {
	if platformID == "" {
		return fmt.Errorf("platform_id is required")
	}
	if !platformIDRegex.MatchString(platformID) {
		return fmt.Errorf("invalid platform_id: %s", platformID)
	}
	return nil
}

// DecodeSignature decodes a hex-encoded signature. Length is checked by the verifier.
func DecodeSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("signature is required")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signature must be hex encoded: %w", err)
	}
	return b, nil
}
