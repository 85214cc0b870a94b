package policy

import "github.com/safestake/registry/internal/domain"

// IdentityStatus holds the non-monetary gates for a participant.
type IdentityStatus struct {
	Registered   bool `json:"registered"`
	AgeVerified  bool `json:"age_verified"`
	SelfExcluded bool `json:"self_excluded"`
	OnCooldown   bool `json:"on_cooldown"`
}

// EvaluateIdentityPolicy reads the gates from a snapshot at now.
func EvaluateIdentityPolicy(snap domain.Snapshot, now domain.Timestamp) IdentityStatus {
	status := IdentityStatus{SelfExcluded: snap.Excluded()}
	if snap.Record == nil {
		return status
	}
	status.Registered = true
	status.AgeVerified = snap.Record.AgeVerified
	status.OnCooldown = snap.Record.CooldownActive(now)
	return status
}

// IsIdentityCleared returns true if all identity checks pass.
func (s IdentityStatus) IsIdentityCleared() bool {
	return s.Registered && s.AgeVerified && !s.SelfExcluded && !s.OnCooldown
}
