package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"treematch/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrTargetNotFound, fiber.StatusNotFound},
		{models.ErrAlreadyLiked, fiber.StatusConflict},
		{models.ErrAdminOnly, fiber.StatusForbidden},
		{models.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{models.NewInvalidFilterError("bad"), fiber.StatusBadRequest},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(models.AsAppError(tt.err)), tt.err.Error())
	}
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "user ID", humanizeParam("userId"))
	assert.Equal(t, "referred user ID", humanizeParam("referredUserId"))
	assert.Equal(t, "code", humanizeParam("code"))
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	e := newTestEnv(t)

	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	e.doJSON(http.MethodGet, "/health", "", nil, http.StatusOK, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Checks["redis"])

	e.mr.SetError("LOADING redis is loading")
	e.doJSON(http.MethodGet, "/health", "", nil, http.StatusOK, &health)
	assert.Equal(t, "degraded", health.Status)

	status, raw := e.do(http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, models.CodeNotFound, body.Code)

	status, _ = e.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
}
