package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/safestake/registry/internal/auth"
	"github.com/safestake/registry/internal/compliance"
	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/guard"
)

// ComplianceHandler exposes the compliance engine over HTTP.
type ComplianceHandler struct {
	engine *compliance.Engine
	idem   *guard.IdempotencyGuard
	now    func() time.Time
}

// NewComplianceHandler creates a ComplianceHandler. idem may be nil to disable
// Idempotency-Key deduplication.
func NewComplianceHandler(engine *compliance.Engine, idem *guard.IdempotencyGuard) *ComplianceHandler {
	return &ComplianceHandler{engine: engine, idem: idem, now: time.Now}
}

func (h *ComplianceHandler) timestamp() domain.Timestamp {
	return domain.TimestampFromTime(h.now())
}

type registerRequest struct {
	Account   string `json:"account"`
	Signature string `json:"signature"`
}

// Register handles POST /identities/register.
func (h *ComplianceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrParseParams("invalid request body"))
		return
	}
	account, err := domain.ParseAccountID(req.Account)
	if err != nil {
		RespondError(w, domain.ErrParseParams(err.Error()))
		return
	}
	sig, err := domain.DecodeSignature(req.Signature)
	if err != nil {
		RespondError(w, domain.ErrParseParams(err.Error()))
		return
	}

	if err := h.engine.Register(r.Context(), account, sig, h.timestamp()); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"identity":     domain.DeriveIdentityKey(account),
		"age_verified": true,
	})
}

type eligibilityResponse struct {
	Identity domain.IdentityKey       `json:"identity"`
	Amount   domain.Amount            `json:"amount"`
	Status   domain.EligibilityStatus `json:"status"`
	Eligible bool                     `json:"eligible"`
}

// Eligibility handles GET /eligibility?account=&amount=.
func (h *ComplianceHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	account, err := domain.ParseAccountID(q.Get("account"))
	if err != nil {
		RespondError(w, domain.ErrParseParams(err.Error()))
		return
	}
	amount, err := parseAmount(q.Get("amount"))
	if err != nil {
		RespondError(w, err)
		return
	}

	id := domain.DeriveIdentityKey(account)
	status, err := h.engine.CheckEligibility(r.Context(), id, amount, h.timestamp())
	if err != nil {
		RespondError(w, domain.ErrInternal("check eligibility", err))
		return
	}

	RespondJSON(w, http.StatusOK, eligibilityResponse{
		Identity: id,
		Amount:   amount,
		Status:   status,
		Eligible: status.IsEligible(),
	})
}

// GetRecord handles GET /me/record.
func (h *ComplianceHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	view, err := h.engine.Record(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

type limitsRequest struct {
	DailyLimit   *domain.Amount `json:"daily_limit"`
	MonthlyLimit *domain.Amount `json:"monthly_limit"`
}

// PutLimits handles PUT /me/limits.
func (h *ComplianceHandler) PutLimits(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req limitsRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrParseParams("invalid request body"))
		return
	}
	if req.DailyLimit == nil || req.MonthlyLimit == nil {
		RespondError(w, domain.ErrParseParams("daily_limit and monthly_limit are required"))
		return
	}

	if err := h.engine.SetLimits(r.Context(), id, *req.DailyLimit, *req.MonthlyLimit, h.timestamp()); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"daily_limit":   *req.DailyLimit,
		"monthly_limit": *req.MonthlyLimit,
	})
}

type selfExclusionRequest struct {
	DurationDays *uint64 `json:"duration_days"`
}

// PostSelfExclusion handles POST /me/self-exclusion.
func (h *ComplianceHandler) PostSelfExclusion(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req selfExclusionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrParseParams("invalid request body"))
		return
	}
	if req.DurationDays == nil {
		RespondError(w, domain.ErrParseParams("duration_days is required"))
		return
	}

	until, err := h.engine.SelfExclude(r.Context(), id, *req.DurationDays, h.timestamp())
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"self_excluded":  true,
		"cooldown_until": until,
	})
}

type transactionRequest struct {
	Account    string         `json:"account"`
	Amount     *domain.Amount `json:"amount"`
	PlatformID string         `json:"platform_id"`
}

// PostTransaction handles POST /transactions from an authenticated platform.
func (h *ComplianceHandler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrParseParams("invalid request body"))
		return
	}
	account, err := domain.ParseAccountID(req.Account)
	if err != nil {
		RespondError(w, domain.ErrParseParams(err.Error()))
		return
	}
	if req.Amount == nil {
		RespondError(w, domain.ErrParseParams("amount is required"))
		return
	}

	// Keys are scoped to the platform subject. A duplicate sent while the
	// first request is running waits for its outcome.
	finish := func(bool) {}
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idem != nil {
		var res domain.GuardResult
		finish, res = h.idem.Acquire(r.Context(), auth.SubjectFromContext(r.Context())+":"+key)
		if !res.Allowed {
			RespondError(w, domain.ErrIdempotent(key))
			return
		}
	}
	committed := false
	defer func() { finish(committed) }()

	rec, err := h.engine.RecordTransaction(r.Context(), domain.DeriveIdentityKey(account), *req.Amount, req.PlatformID, h.timestamp())
	if err != nil {
		RespondError(w, err)
		return
	}
	committed = true

	RespondJSON(w, http.StatusCreated, rec)
}

// callerIdentity derives the caller's IdentityKey from the account token subject.
func callerIdentity(r *http.Request) (domain.IdentityKey, error) {
	account, err := domain.ParseAccountID(auth.SubjectFromContext(r.Context()))
	if err != nil {
		return domain.IdentityKey{}, domain.ErrUnauthorized("invalid account in token")
	}
	return domain.DeriveIdentityKey(account), nil
}

func parseAmount(s string) (domain.Amount, error) {
	if s == "" {
		return 0, domain.ErrParseParams("amount is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, domain.ErrParseParams("amount must be a non-negative integer")
	}
	return domain.Amount(v), nil
}
