//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/safestake/registry/internal/domain"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// Eligibility queries GET /eligibility and returns the status.
func Eligibility(t *testing.T, env *TestEnv, account []byte, amount string) domain.EligibilityStatus {
	t.Helper()
	resp := env.GET("/eligibility?account=" + Hex(account) + "&amount=" + amount)
	AssertStatus(t, resp, http.StatusOK)
	var body struct {
		Status domain.EligibilityStatus `json:"status"`
	}
	DecodeJSON(t, resp, &body)
	return body.Status
}

// AssertSpent reads the stored record and asserts its spend counters.
func AssertSpent(t *testing.T, env *TestEnv, account []byte, daily, monthly domain.Amount) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := env.Store.Load(ctx, domain.DeriveIdentityKey(account))
	if err != nil {
		t.Fatalf("AssertSpent: load: %v", err)
	}
	if snap.Record == nil {
		t.Fatalf("AssertSpent: no record")
	}
	if snap.Record.DailySpent != daily || snap.Record.MonthlySpent != monthly {
		t.Errorf("expected spent daily=%d monthly=%d, got daily=%d monthly=%d",
			daily, monthly, snap.Record.DailySpent, snap.Record.MonthlySpent)
	}
}

// CountOutboxEvents counts outbox rows for an identity, optionally of one type.
func CountOutboxEvents(t *testing.T, env *TestEnv, account []byte, eventType domain.EventType) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE "aggregateId" = $1 AND ($2 = '' OR "eventType" = $2)`,
		domain.DeriveIdentityKey(account).String(), string(eventType)).Scan(&count)
	if err != nil {
		t.Fatalf("CountOutboxEvents: %v", err)
	}
	return count
}
