package policy

import "github.com/safestake/registry/internal/domain"

const (
	LimitDaily   = "daily"
	LimitMonthly = "monthly"
)

// RgEvaluation holds the result of a spend-limit check.
type RgEvaluation struct {
	Allowed       bool          `json:"allowed"`
	BreachedLimit string        `json:"breached_limit,omitempty"`
	LimitValue    domain.Amount `json:"limit_value,omitempty"`
	NewDaily      domain.Amount `json:"new_daily"`
	NewMonthly    domain.Amount `json:"new_monthly"`
}

// EvaluateRgLimits checks amount against the daily and monthly limits given the
// spend already counted in the current windows. Daily is checked first. A sum
// that overflows counts as a breach.
func EvaluateRgLimits(dailyLimit, monthlyLimit, dailySpent, monthlySpent, amount domain.Amount) RgEvaluation {
	newDaily, ok := dailySpent.CheckedAdd(amount)
	if !ok || newDaily > dailyLimit {
		return RgEvaluation{BreachedLimit: LimitDaily, LimitValue: dailyLimit}
	}

	newMonthly, ok := monthlySpent.CheckedAdd(amount)
	if !ok || newMonthly > monthlyLimit {
		return RgEvaluation{BreachedLimit: LimitMonthly, LimitValue: monthlyLimit}
	}

	return RgEvaluation{Allowed: true, NewDaily: newDaily, NewMonthly: newMonthly}
}

// EvaluateRecordLimits runs EvaluateRgLimits on a record whose windows are already current.
func EvaluateRecordLimits(rec *domain.ComplianceRecord, amount domain.Amount) RgEvaluation {
	return EvaluateRgLimits(rec.DailyLimit, rec.MonthlyLimit, rec.DailySpent, rec.MonthlySpent, amount)
}

// ValidLimits reports whether a limit pair may be stored.
func ValidLimits(daily, monthly domain.Amount) bool {
	return daily <= monthly
}
