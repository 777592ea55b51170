// Package middleware provides the fiber middleware shared by the HTTP routes:
// authentication, request logging, rate limiting and tracing.
package middleware

import (
	"errors"
	"strconv"
	"strings"

	"treematch/internal/config"
	"treematch/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer is both the issuer and the audience of every access token.
const TokenIssuer = "treematch-api"

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// AuthRequired rejects requests without a valid bearer token and stores the
// token's subject in c.Locals("userID") as a uint.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return unauthenticated(c, "Authorization header required")
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || tokenString == "" {
		return unauthenticated(c, "Invalid authorization header format")
	}
	if cfg == nil {
		return unauthenticated(c, "Authentication is not configured")
	}

	userID, err := ParseToken(tokenString, cfg.JWTSecret)
	if err != nil {
		return unauthenticated(c, "Invalid or expired token")
	}

	c.Locals("userID", userID)
	return c.Next()
}

// ParseToken verifies an HS256 access token and returns its subject as a user id.
func ParseToken(tokenString, secret string) (uint, error) {
	token, err := jwt.Parse(tokenString,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid user id in token subject")
	}
	return uint(id), nil
}

// CurrentUserID returns the id stored by AuthRequired.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}

func unauthenticated(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
		Error:  msg,
		Code:   models.CodeUnauthorized,
		Reason: "INVALID_TOKEN",
	})
}
