package domain

import "sort"

// ComplianceRecord is the per-identity limit, spend, verification and cooldown state.
type ComplianceRecord struct {
	Identity       IdentityKey `json:"identity"`
	DailyLimit     Amount      `json:"daily_limit"`
	MonthlyLimit   Amount      `json:"monthly_limit"`
	DailySpent     Amount      `json:"daily_spent"`
	MonthlySpent   Amount      `json:"monthly_spent"`
	LastResetDay   Timestamp   `json:"last_reset_day"`
	LastResetMonth Timestamp   `json:"last_reset_month"`
	CooldownUntil  *Timestamp  `json:"cooldown_until,omitempty"`
	PlatformsUsed  []string    `json:"platforms_used"`
	AgeVerified    bool        `json:"age_verified"`
}

// NewComplianceRecord returns a record with zero limits and spend whose windows start at now.
func NewComplianceRecord(id IdentityKey, now Timestamp) *ComplianceRecord {
	return &ComplianceRecord{
		Identity:       id,
		LastResetDay:   now,
		LastResetMonth: now,
		PlatformsUsed:  []string{},
	}
}

// Clone returns a deep copy.
func (r *ComplianceRecord) Clone() *ComplianceRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.CooldownUntil != nil {
		until := *r.CooldownUntil
		c.CooldownUntil = &until
	}
	c.PlatformsUsed = append([]string{}, r.PlatformsUsed...)
	return &c
}

// CooldownActive reports whether now falls strictly before the cooldown end.
func (r *ComplianceRecord) CooldownActive(now Timestamp) bool {
	return r.CooldownUntil != nil && now.Before(*r.CooldownUntil)
}

// ExtendCooldown sets the cooldown end to until unless a later end is already set.
func (r *ComplianceRecord) ExtendCooldown(until Timestamp) {
	if r.CooldownUntil != nil && *r.CooldownUntil >= until {
		return
	}
	r.CooldownUntil = &until
}

// AddPlatform inserts platform into the sorted PlatformsUsed set.
func (r *ComplianceRecord) AddPlatform(platform string) {
	i := sort.SearchStrings(r.PlatformsUsed, platform)
	if i < len(r.PlatformsUsed) && r.PlatformsUsed[i] == platform {
		return
	}
	r.PlatformsUsed = append(r.PlatformsUsed, "")
	copy(r.PlatformsUsed[i+1:], r.PlatformsUsed[i:])
	r.PlatformsUsed[i] = platform
}

// Exclusion is an ExclusionSet entry. Entries are never removed.
type Exclusion struct {
	Identity      IdentityKey `json:"identity"`
	CooldownUntil Timestamp   `json:"cooldown_until"`
	ExcludedAt    Timestamp   `json:"excluded_at"`
}

// Snapshot is a consistent view of one identity: its record (nil if none) and
// its exclusion entry (nil if never self-excluded).
type Snapshot struct {
	Record    *ComplianceRecord
	Exclusion *Exclusion
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Record: s.Record.Clone()}
	if s.Exclusion != nil {
		ex := *s.Exclusion
		out.Exclusion = &ex
	}
	return out
}

// Excluded reports whether the identity is in the ExclusionSet.
func (s Snapshot) Excluded() bool { return s.Exclusion != nil }

// AccountView is the read model returned to a participant for their own account.
type AccountView struct {
	Record       *ComplianceRecord `json:"record"`
	SelfExcluded bool              `json:"self_excluded"`
}
