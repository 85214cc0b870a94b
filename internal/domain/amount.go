package domain

import (
	"errors"
	"math"
	"math/bits"
	"time"
)

// Amount is a non-negative monetary value in micro-units.
type Amount uint64

// CheckedAdd returns a+b and false if the sum overflows.
func (a Amount) CheckedAdd(b Amount) (Amount, bool) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, false
	}
	return Amount(sum), true
}

// MillisPerDay is the length of one cooldown day.
const MillisPerDay uint64 = 86_400_000

// ErrTimestampOverflow is returned when timestamp arithmetic leaves the representable range.
var ErrTimestampOverflow = errors.New("timestamp overflow")

// Timestamp is milliseconds since the Unix epoch (UTC).
type Timestamp uint64

// TimestampFromTime converts a wall-clock time. Times before the epoch clamp to zero.
func TimestampFromTime(t time.Time) Timestamp {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return Timestamp(ms)
}

// Time converts back to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	if uint64(t) > math.MaxInt64 {
		return time.UnixMilli(math.MaxInt64).UTC()
	}
	return time.UnixMilli(int64(t)).UTC()
}

// AddDays returns t + days*MillisPerDay, failing instead of wrapping.
func (t Timestamp) AddDays(days uint64) (Timestamp, error) {
	hi, delta := bits.Mul64(days, MillisPerDay)
	if hi != 0 {
		return 0, ErrTimestampOverflow
	}
	sum, carry := bits.Add64(uint64(t), delta, 0)
	if carry != 0 {
		return 0, ErrTimestampOverflow
	}
	return Timestamp(sum), nil
}

// Before reports whether t is strictly earlier than u.
func (t Timestamp) Before(u Timestamp) bool { return t < u }
