package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"treematch/internal/middleware"
	"treematch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// statusFor maps an error code to its HTTP status.
func statusFor(appErr *models.AppError) int {
	switch appErr.Code {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		// Bad credentials are an authentication failure, not a missing permission.
		if errors.Is(appErr, models.ErrInvalidCredentials) {
			return fiber.StatusUnauthorized
		}
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as a structured ErrorResponse.
// Internal errors are logged with their cause and reported without it.
func respondError(c *fiber.Ctx, err error) error {
	appErr := models.AsAppError(err)
	status := statusFor(appErr)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(middleware.UserContext(c), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return c.Status(status).JSON(models.ErrorResponse{
		Error:  appErr.Message,
		Code:   appErr.Code,
		Reason: appErr.Reason,
	})
}

// errorHandler renders errors that escape handlers, including fiber's own 404/405.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			code = models.CodeNotFound
		case fe.Code < fiber.StatusInternalServerError:
			code = models.CodeValidation
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: code})
	}
	return respondError(c, err)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = respondError(c, models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// queryDepth reads max_depth. An absent value is -1, which means the configured default.
func queryDepth(c *fiber.Ctx) (int, error) {
	raw := c.Query("max_depth")
	if raw == "" {
		return -1, nil
	}
	depth := c.QueryInt("max_depth", -2)
	if depth < 0 {
		_ = respondError(c, models.NewValidationError("max_depth must be a non-negative integer"))
		return 0, errResponseWritten
	}
	return depth, nil
}

// currentUser returns the authenticated caller. AuthRequired guarantees it is set.
func currentUser(c *fiber.Ctx) uint {
	id, _ := middleware.CurrentUserID(c)
	return id
}

// parseBody decodes the JSON body into out, answering 400 on malformed input.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		_ = respondError(c, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
