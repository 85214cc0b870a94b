package policy

import "github.com/safestake/registry/internal/domain"

// Spend windows are calendar aligned in UTC: a day starts at 00:00 UTC and a
// month on the 1st at 00:00 UTC.

// DayIndex returns the number of whole UTC days since the epoch.
func DayIndex(ts domain.Timestamp) uint64 {
	return uint64(ts) / domain.MillisPerDay
}

// MonthIndex returns year*12 + (month-1) for the UTC calendar month containing ts.
func MonthIndex(ts domain.Timestamp) uint64 {
	t := ts.Time()
	return uint64(t.Year())*12 + uint64(t.Month()-1)
}

// Rollover reports which counters reset at now. Day and month are evaluated
// independently; a clock that moves backwards never resets either.
type Rollover struct {
	Daily   bool `json:"daily"`
	Monthly bool `json:"monthly"`
}

// CheckRollover compares now against the record's window starts.
func CheckRollover(rec *domain.ComplianceRecord, now domain.Timestamp) Rollover {
	return Rollover{
		Daily:   DayIndex(now) > DayIndex(rec.LastResetDay),
		Monthly: MonthIndex(now) > MonthIndex(rec.LastResetMonth),
	}
}

// ApplyRollover resets the counters whose window has ended. It mutates rec, so
// callers evaluating without committing must pass a copy.
func ApplyRollover(rec *domain.ComplianceRecord, now domain.Timestamp) Rollover {
	r := CheckRollover(rec, now)
	if r.Daily {
		rec.DailySpent = 0
		rec.LastResetDay = now
	}
	if r.Monthly {
		rec.MonthlySpent = 0
		rec.LastResetMonth = now
	}
	return r
}

// EffectiveSpend returns the daily and monthly spend that would apply at now,
// without touching rec.
func EffectiveSpend(rec *domain.ComplianceRecord, now domain.Timestamp) (daily, monthly domain.Amount) {
	r := CheckRollover(rec, now)
	daily, monthly = rec.DailySpent, rec.MonthlySpent
	if r.Daily {
		daily = 0
	}
	if r.Monthly {
		monthly = 0
	}
	return daily, monthly
}
