package server

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandlers_RootRegisterLogin(t *testing.T) {
	e := newTestEnv(t)

	e.expectError(http.MethodPost, "/api/setup/root", "", fiber.Map{
		"email":          "root@treematch.test",
		"password":       testPassword,
		"full_name":      "Root Admin",
		"setup_password": "wrong",
	}, http.StatusForbidden, "")

	root := e.setupRoot()
	assert.True(t, root.User.IsRoot)
	assert.NotEmpty(t, root.Token)

	e.expectError(http.MethodPost, "/api/setup/root", "", fiber.Map{
		"email":          "again@treematch.test",
		"password":       testPassword,
		"full_name":      "Second Root",
		"setup_password": testSetupPassword,
	}, http.StatusConflict, "ALREADY_INITIALIZED")

	var check struct {
		Valid        bool   `json:"valid"`
		ReferrerName string `json:"referrer_name"`
	}
	e.doJSON(http.MethodGet, "/api/auth/validate-referral/"+root.User.ReferralCode, "", nil, http.StatusOK, &check)
	assert.True(t, check.Valid)
	assert.Equal(t, "Root Admin", check.ReferrerName)
	e.doJSON(http.MethodGet, "/api/auth/validate-referral/bogus", "", nil, http.StatusOK, &check)
	assert.False(t, check.Valid)

	maya := e.register("Maya Katz", "maya@example.com", root.User.ReferralCode)
	require.NotNil(t, maya.User.ReferredBy)
	assert.Equal(t, root.User.ID, maya.User.ReferredBy.ID)
	assert.False(t, maya.User.IsRoot)

	e.expectError(http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email":         "maya@example.com",
		"password":      testPassword,
		"full_name":     "Maya Again",
		"referral_code": root.User.ReferralCode,
	}, http.StatusConflict, "EMAIL_TAKEN")
	e.expectError(http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email":         "lior@example.com",
		"password":      testPassword,
		"full_name":     "Lior Ben",
		"referral_code": "nope",
	}, http.StatusNotFound, "INVALID_CODE")
	e.expectError(http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email":         "lior@example.com",
		"password":      "weak",
		"full_name":     "Lior Ben",
		"referral_code": root.User.ReferralCode,
	}, http.StatusBadRequest, "")

	var login authBody
	e.doJSON(http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "MAYA@example.com",
		"password": testPassword,
	}, http.StatusOK, &login)
	assert.Equal(t, maya.User.ID, login.User.ID)

	e.expectError(http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "maya@example.com",
		"password": "Wrong-Password-1",
	}, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	var me authBody
	e.doJSON(http.MethodGet, "/api/auth/me", login.Token, nil, http.StatusOK, &me.User)
	assert.Equal(t, "maya@example.com", me.User.Email)
	assert.Equal(t, "Maya Katz", me.User.FullName)

	e.doJSON(http.MethodPut, "/api/users/me", login.Token, fiber.Map{"full_name": "Maya K"}, http.StatusOK, &me.User)
	assert.Equal(t, "Maya K", me.User.FullName)
}

func TestAuthHandlers_RequireToken(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/api/auth/me", "/api/referrals/tree", "/api/users/search", "/api/admin/stats"} {
		out := e.expectError(http.MethodGet, path, "", nil, http.StatusUnauthorized, "INVALID_TOKEN")
		assert.NotEmpty(t, out.Error, path)
	}
	e.expectError(http.MethodGet, "/api/auth/me", "not-a-jwt", nil, http.StatusUnauthorized, "INVALID_TOKEN")
}

func TestAuthHandlers_MalformedBody(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(http.MethodPost, "/api/auth/login", "", "just a string")
	assert.Equal(t, http.StatusBadRequest, status, string(raw))
}

func TestAuthHandlers_LoginRateLimit(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	e := newTestEnv(t)

	body := fiber.Map{"email": "nobody@example.com", "password": testPassword}
	for range 10 {
		e.expectError(http.MethodPost, "/api/auth/login", "", body, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	}
	out := e.expectError(http.MethodPost, "/api/auth/login", "", body, http.StatusTooManyRequests, "")
	assert.Equal(t, "RATE_LIMITED", out.Code)
}
