package domain

// EligibilityStatus is the outcome of a pre-wager eligibility check.
type EligibilityStatus string

const (
	StatusEligible            EligibilityStatus = "Eligible"
	StatusNotRegistered       EligibilityStatus = "NotRegistered"
	StatusSelfExcluded        EligibilityStatus = "SelfExcluded"
	StatusOnCooldown          EligibilityStatus = "OnCooldown"
	StatusAgeNotVerified      EligibilityStatus = "AgeNotVerified"
	StatusDailyLimitReached   EligibilityStatus = "DailyLimitReached"
	StatusMonthlyLimitReached EligibilityStatus = "MonthlyLimitReached"
)

// IsEligible reports whether a wager may proceed.
func (s EligibilityStatus) IsEligible() bool { return s == StatusEligible }
