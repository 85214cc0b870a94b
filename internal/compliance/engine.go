package compliance

import (
	"errors"
	"log/slog"
	"time"

	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/metrics"
	"github.com/safestake/registry/internal/repository"
)

// Operation names used for metrics and logs.
const (
	OpRegister          = "register"
	OpSetLimits         = "set_limits"
	OpSelfExclude       = "self_exclude"
	OpRecordTransaction = "record_transaction"
	OpCheckEligibility  = "check_eligibility"
	OpRecord            = "record"
)

// Verifier checks an age-verification signature over a message.
type Verifier interface {
	Verify(message, signature []byte) bool
}

// Engine provides the compliance operations over a ComplianceStore:
//  1. Register: age-verified registration by signature
//  2. SetLimits: daily and monthly spend limits
//  3. SelfExclude: add to the exclusion set with a cooldown
//  4. RecordTransaction: count spend against the limits
//  5. CheckEligibility: read-only pre-wager decision
//
// Caller identity and the current time are explicit parameters of every operation.
type Engine struct {
	store    repository.ComplianceStore
	verifier Verifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine creates a compliance engine. metrics may be nil.
func NewEngine(store repository.ComplianceStore, verifier Verifier, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		verifier: verifier,
		metrics:  m,
		logger:   logger,
	}
}

// finish records metrics and logs the outcome of a mutating operation.
func (e *Engine) finish(op string, id domain.IdentityKey, start time.Time, err error, attrs ...any) {
	e.metrics.ObserveOperation(op, err, time.Since(start))

	attrs = append(attrs, "operation", op, "identity", id.String())
	var appErr *domain.AppError
	switch {
	case err == nil:
		e.logger.Info("compliance operation applied", attrs...)
	case errors.As(err, &appErr) && appErr.Code != domain.CodeInternal:
		e.logger.Debug("compliance operation rejected", append(attrs, "code", appErr.Code)...)
	default:
		e.logger.Error("compliance operation failed", append(attrs, "error", err)...)
	}
}

// recordFor starts a record for an identity that has none. An identity that
// already self-excluded inherits its cooldown.
func recordFor(snap *domain.Snapshot, id domain.IdentityKey, now domain.Timestamp) *domain.ComplianceRecord {
	rec := domain.NewComplianceRecord(id, now)
	if snap.Exclusion != nil {
		rec.ExtendCooldown(snap.Exclusion.CooldownUntil)
	}
	return rec
}
