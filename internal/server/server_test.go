package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"treematch/internal/config"
	"treematch/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testSetupPassword = "root-setup-secret"
	testPassword      = "Correct-Horse-42"
)

type testEnv struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	rdb *redis.Client
	mr  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "0",
		Env:                    "test",
		AllowedOrigins:         "http://localhost:5173",
		FeatureFlags:           "name_search=on",
		DBDriver:               "sqlite",
		JWTSecret:              "test-secret-at-least-32-characters!!",
		JWTTTLHours:            1,
		EncryptionKey:          base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)),
		FingerprintKey:         "test-fingerprint",
		AdminSetupPassword:     testSetupPassword,
		ReferralChainMaxDepth:  10,
		ReferralTreeMaxDepth:   3,
		ReferralTreeDepthLimit: 10,
		SearchDefaultPageSize:  20,
		SearchMaxPageSize:      100,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := NewServer(testConfig(), testutil.NewTestDB(t), rdb)
	require.NoError(t, err)
	return &testEnv{t: t, srv: srv, app: srv.App(), rdb: rdb, mr: mr}
}

// do sends a request and returns the status code and raw body.
func (e *testEnv) do(method, path, token string, body any) (int, []byte) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, raw
}

// doJSON is do plus decoding the body into out. It fails the test on an unexpected status.
func (e *testEnv) doJSON(method, path, token string, body any, wantStatus int, out any) {
	e.t.Helper()
	status, raw := e.do(method, path, token, body)
	require.Equal(e.t, wantStatus, status, string(raw))
	if out != nil {
		require.NoError(e.t, json.Unmarshal(raw, out), string(raw))
	}
}

type authBody struct {
	Token string `json:"token"`
	User  struct {
		ID           uint   `json:"id"`
		FullName     string `json:"full_name"`
		Email        string `json:"email"`
		ReferralCode string `json:"referral_code"`
		IsRoot       bool   `json:"is_root"`
		ReferredBy   *struct {
			ID uint `json:"id"`
		} `json:"referred_by"`
	} `json:"user"`
}

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (e *testEnv) setupRoot() authBody {
	e.t.Helper()
	var out authBody
	e.doJSON(http.MethodPost, "/api/setup/root", "", fiber.Map{
		"email":          "root@treematch.test",
		"password":       testPassword,
		"full_name":      "Root Admin",
		"setup_password": testSetupPassword,
	}, http.StatusCreated, &out)
	return out
}

func (e *testEnv) register(name, email, code string) authBody {
	e.t.Helper()
	var out authBody
	e.doJSON(http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email":         email,
		"password":      testPassword,
		"full_name":     name,
		"referral_code": code,
	}, http.StatusCreated, &out)
	return out
}

// expectError asserts an error response with the given status and reason.
func (e *testEnv) expectError(method, path, token string, body any, wantStatus int, wantReason string) errorBody {
	e.t.Helper()
	var out errorBody
	e.doJSON(method, path, token, body, wantStatus, &out)
	if wantReason != "" {
		require.Equal(e.t, wantReason, out.Reason, out.Error)
	}
	return out
}
