//go:build integration

package testutil

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/safestake/registry/internal/auth"
)

// Account returns the fixed 32-byte test account filled with b.
func Account(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

// Hex encodes an account for request bodies and token subjects.
func Hex(account []byte) string {
	return hex.EncodeToString(account)
}

// Sign returns the verifier's hex signature over account.
func (env *TestEnv) Sign(account []byte) string {
	return hex.EncodeToString(ed25519.Sign(env.Signer, account))
}

// AccountToken mints a participant token for account.
func (env *TestEnv) AccountToken(account []byte) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmAccount, Hex(account))
	if err != nil {
		env.t.Fatalf("AccountToken: %v", err)
	}
	return token
}

// PlatformToken mints a platform token for operator id.
func (env *TestEnv) PlatformToken(id string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmPlatform, id)
	if err != nil {
		env.t.Fatalf("PlatformToken: %v", err)
	}
	return token
}

// Register performs an age-verified registration and fails the test unless it succeeds.
func (env *TestEnv) Register(account []byte) {
	env.t.Helper()
	resp := env.POST("/identities/register", map[string]string{
		"account":   Hex(account),
		"signature": env.Sign(account),
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("Register: expected 200, got %d", resp.StatusCode)
	}
}

// SetLimits sets limits through the API and returns the response.
func (env *TestEnv) SetLimits(account []byte, daily, monthly uint64) *http.Response {
	env.t.Helper()
	return env.PUT("/me/limits", map[string]uint64{
		"daily_limit":   daily,
		"monthly_limit": monthly,
	}, env.AccountToken(account))
}

// RecordTransaction reports spend as platform_1 with an optional idempotency key.
func (env *TestEnv) RecordTransaction(account []byte, amount uint64, idemKey string) *http.Response {
	env.t.Helper()
	headers := map[string]string{}
	if idemKey != "" {
		headers["Idempotency-Key"] = idemKey
	}
	return env.do(http.MethodPost, "/transactions", map[string]interface{}{
		"account":     Hex(account),
		"amount":      amount,
		"platform_id": "platform_1",
	}, env.PlatformToken("platform_1"), headers)
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, "", nil)
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, token, nil)
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, token, nil)
}

// PUT performs a PUT request with optional auth token.
func (env *TestEnv) PUT(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPut, path, body, token, nil)
}

func (env *TestEnv) do(method, path string, body interface{}, token string, headers map[string]string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}
