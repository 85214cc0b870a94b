package handler

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safestake/registry/internal/auth"
	"github.com/safestake/registry/internal/compliance"
	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/guard"
	"github.com/safestake/registry/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aliceAccount = bytes.Repeat([]byte{1}, 32)
	bobAccount   = bytes.Repeat([]byte{2}, 32)
)

type complianceEnv struct {
	h      *ComplianceHandler
	store  *repository.MemoryStore
	signer ed25519.PrivateKey
}

func newComplianceEnv(t *testing.T) *complianceEnv {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 1
	signer := ed25519.NewKeyFromSeed(seed)
	verifier, err := auth.NewEd25519Verifier(signer.Public().(ed25519.PublicKey))
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	engine := compliance.NewEngine(store, verifier, nil, noopLogger())
	h := NewComplianceHandler(engine, guard.NewIdempotencyGuard(time.Hour))
	h.now = func() time.Time { return time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC) }
	return &complianceEnv{h: h, store: store, signer: signer}
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	return httptest.NewRequest(method, path, bytes.NewReader(b))
}

func asSubject(r *http.Request, subject string) *http.Request {
	return r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{Realm: auth.RealmAccount, RegisteredClaims: jwtSubject(subject)}))
}

func jwtSubject(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}

func (e *complianceEnv) register(t *testing.T, account []byte) {
	t.Helper()
	w := httptest.NewRecorder()
	e.h.Register(w, jsonRequest(http.MethodPost, "/identities/register", map[string]string{
		"account":   hex.EncodeToString(account),
		"signature": hex.EncodeToString(ed25519.Sign(e.signer, account)),
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (e *complianceEnv) putLimits(account []byte, body interface{}) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.h.PutLimits(w, asSubject(jsonRequest(http.MethodPut, "/me/limits", body), hex.EncodeToString(account)))
	return w
}

func (e *complianceEnv) eligibility(account []byte, amount string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.h.Eligibility(w, httptest.NewRequest(http.MethodGet, "/eligibility?account="+hex.EncodeToString(account)+"&amount="+amount, nil))
	return w
}

func (e *complianceEnv) transaction(account []byte, amount uint64, idemKey string) *httptest.ResponseRecorder {
	r := jsonRequest(http.MethodPost, "/transactions", map[string]interface{}{
		"account":     hex.EncodeToString(account),
		"amount":      amount,
		"platform_id": "platform_1",
	})
	if idemKey != "" {
		r.Header.Set("Idempotency-Key", idemKey)
	}
	r = r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{Realm: auth.RealmPlatform, RegisteredClaims: jwtSubject("platform_1")}))
	w := httptest.NewRecorder()
	e.h.PostTransaction(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestComplianceHandler_Register(t *testing.T) {
	env := newComplianceEnv(t)

	t.Run("valid signature", func(t *testing.T) {
		env.register(t, aliceAccount)
		snap, err := env.store.Load(context.Background(), domain.DeriveIdentityKey(aliceAccount))
		require.NoError(t, err)
		require.NotNil(t, snap.Record)
		assert.True(t, snap.Record.AgeVerified)
	})

	t.Run("signature over another account", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.h.Register(w, jsonRequest(http.MethodPost, "/identities/register", map[string]string{
			"account":   hex.EncodeToString(bobAccount),
			"signature": hex.EncodeToString(ed25519.Sign(env.signer, aliceAccount)),
		}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_SIGNATURE", decodeBody(t, w)["code"])
	})

	t.Run("malformed input", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"not json", `{`},
			{"missing account", `{"signature":"00"}`},
			{"non-hex signature", `{"account":"0101","signature":"zz"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				env.h.Register(w, httptest.NewRequest(http.MethodPost, "/identities/register", bytes.NewBufferString(tt.body)))
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, "PARSE_PARAMS", decodeBody(t, w)["code"])
			})
		}
	})
}

func TestComplianceHandler_Eligibility(t *testing.T) {
	env := newComplianceEnv(t)

	w := env.eligibility(bobAccount, "1000")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, string(domain.StatusNotRegistered), body["status"])
	assert.Equal(t, false, body["eligible"])

	env.register(t, aliceAccount)
	require.Equal(t, http.StatusOK, env.putLimits(aliceAccount, map[string]uint64{"daily_limit": 1_000_000_000, "monthly_limit": 5_000_000_000}).Code)

	body = decodeBody(t, env.eligibility(aliceAccount, "500000000"))
	assert.Equal(t, string(domain.StatusEligible), body["status"])
	assert.Equal(t, true, body["eligible"])

	body = decodeBody(t, env.eligibility(aliceAccount, "1500000000"))
	assert.Equal(t, string(domain.StatusDailyLimitReached), body["status"])

	for _, bad := range []string{"", "-1", "abc", "18446744073709551616"} {
		w := env.eligibility(aliceAccount, bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, "amount %q", bad)
	}
}

func TestComplianceHandler_PutLimits(t *testing.T) {
	env := newComplianceEnv(t)

	w := env.putLimits(aliceAccount, map[string]uint64{"daily_limit": 10, "monthly_limit": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_LIMITS", decodeBody(t, w)["code"])

	w = env.putLimits(aliceAccount, map[string]uint64{"daily_limit": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PARSE_PARAMS", decodeBody(t, w)["code"])

	w = env.putLimits(aliceAccount, map[string]uint64{"daily_limit": 5, "monthly_limit": 5})
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	env.h.PutLimits(w, asSubject(jsonRequest(http.MethodPut, "/me/limits", map[string]uint64{"daily_limit": 1, "monthly_limit": 2}), "not-hex"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestComplianceHandler_SelfExclusionAndRecord(t *testing.T) {
	env := newComplianceEnv(t)
	env.register(t, aliceAccount)
	sub := hex.EncodeToString(aliceAccount)

	w := httptest.NewRecorder()
	env.h.PostSelfExclusion(w, asSubject(jsonRequest(http.MethodPost, "/me/self-exclusion", map[string]uint64{"duration_days": 7}), sub))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["self_excluded"])
	assert.NotZero(t, body["cooldown_until"])

	w = httptest.NewRecorder()
	env.h.PostSelfExclusion(w, asSubject(jsonRequest(http.MethodPost, "/me/self-exclusion", map[string]string{}), sub))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	env.h.GetRecord(w, asSubject(httptest.NewRequest(http.MethodGet, "/me/record", nil), sub))
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Record struct {
			Identity      string `json:"identity"`
			AgeVerified   bool   `json:"age_verified"`
			CooldownUntil uint64 `json:"cooldown_until"`
		} `json:"record"`
		SelfExcluded bool `json:"self_excluded"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, domain.DeriveIdentityKey(aliceAccount).String(), view.Record.Identity)
	assert.True(t, view.Record.AgeVerified)
	assert.True(t, view.SelfExcluded)
	assert.NotZero(t, view.Record.CooldownUntil)

	body = decodeBody(t, env.eligibility(aliceAccount, "1"))
	assert.Equal(t, string(domain.StatusOnCooldown), body["status"])
}

func TestComplianceHandler_GetRecordUnregistered(t *testing.T) {
	env := newComplianceEnv(t)
	w := httptest.NewRecorder()
	env.h.GetRecord(w, asSubject(httptest.NewRequest(http.MethodGet, "/me/record", nil), hex.EncodeToString(bobAccount)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_REGISTERED", decodeBody(t, w)["code"])
}

func TestComplianceHandler_PostTransaction(t *testing.T) {
	env := newComplianceEnv(t)
	env.register(t, aliceAccount)
	require.Equal(t, http.StatusOK, env.putLimits(aliceAccount, map[string]uint64{"daily_limit": 1_000, "monthly_limit": 5_000}).Code)

	t.Run("records spend", func(t *testing.T) {
		w := env.transaction(aliceAccount, 400, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.EqualValues(t, 400, body["daily_spent"])
		assert.Equal(t, []interface{}{"platform_1"}, body["platforms_used"])
	})

	t.Run("duplicate idempotency key is rejected", func(t *testing.T) {
		require.Equal(t, http.StatusCreated, env.transaction(aliceAccount, 100, "tx-1").Code)
		w := env.transaction(aliceAccount, 100, "tx-1")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "IDEMPOTENT", decodeBody(t, w)["code"])

		snap, err := env.store.Load(context.Background(), domain.DeriveIdentityKey(aliceAccount))
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(500), snap.Record.DailySpent)
	})

	t.Run("failed attempt releases its key", func(t *testing.T) {
		w := env.transaction(aliceAccount, 10_000, "tx-2")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "DAILY_LIMIT_EXCEEDED", decodeBody(t, w)["code"])

		assert.Equal(t, http.StatusCreated, env.transaction(aliceAccount, 100, "tx-2").Code)
	})

	t.Run("duplicate waits for in-flight attempt", func(t *testing.T) {
		finish, res := env.h.idem.Acquire(context.Background(), "platform_1:tx-3")
		require.True(t, res.Allowed)

		done := make(chan *httptest.ResponseRecorder, 1)
		go func() { done <- env.transaction(aliceAccount, 50, "tx-3") }()

		select {
		case <-done:
			t.Fatal("duplicate answered before the in-flight attempt finished")
		case <-time.After(20 * time.Millisecond):
		}

		finish(false)
		select {
		case w := <-done:
			assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		case <-time.After(time.Second):
			t.Fatal("duplicate never completed")
		}
		assert.Equal(t, http.StatusConflict, env.transaction(aliceAccount, 50, "tx-3").Code)
	})

	t.Run("unregistered user", func(t *testing.T) {
		w := env.transaction(bobAccount, 1, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing amount", func(t *testing.T) {
		r := jsonRequest(http.MethodPost, "/transactions", map[string]string{
			"account":     hex.EncodeToString(aliceAccount),
			"platform_id": "platform_1",
		})
		w := httptest.NewRecorder()
		env.h.PostTransaction(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
