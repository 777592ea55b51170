package models

import (
	"errors"
	"fmt"
)

// Error codes. Every failure surfaced to callers carries exactly one of these.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeValidation   = "VALIDATION_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error.
// Reason is a stable, more specific identifier within Code (e.g. ALREADY_LIKED).
type AppError struct {
	Code    string
	Reason  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError with the same non-empty Reason.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t.Reason == "" {
		return false
	}
	return e.Reason == t.Reason
}

// Sentinel errors returned by the referral, graph, chat and admin services.
var (
	ErrInvalidCode        = &AppError{Code: CodeNotFound, Reason: "INVALID_CODE", Message: "Invalid referral code"}
	ErrAlreadyReferred    = &AppError{Code: CodeConflict, Reason: "ALREADY_REFERRED", Message: "User already has a referrer"}
	ErrSelfReference      = &AppError{Code: CodeConflict, Reason: "SELF_REFERENCE", Message: "Cannot target yourself"}
	ErrTargetNotFound     = &AppError{Code: CodeNotFound, Reason: "TARGET_NOT_FOUND", Message: "User not found"}
	ErrAlreadyLiked       = &AppError{Code: CodeConflict, Reason: "ALREADY_LIKED", Message: "Already liked this user"}
	ErrAlreadyBlocked     = &AppError{Code: CodeConflict, Reason: "ALREADY_BLOCKED", Message: "User is already blocked"}
	ErrNotBlocked         = &AppError{Code: CodeNotFound, Reason: "NOT_BLOCKED", Message: "User is not blocked"}
	ErrBlocked            = &AppError{Code: CodeConflict, Reason: "BLOCKED", Message: "A block exists between these users"}
	ErrEmailTaken         = &AppError{Code: CodeConflict, Reason: "EMAIL_TAKEN", Message: "Email already registered"}
	ErrRootProtected      = &AppError{Code: CodeUnauthorized, Reason: "ROOT_PROTECTED", Message: "The root user cannot be modified"}
	ErrAdminOnly          = &AppError{Code: CodeUnauthorized, Reason: "ADMIN_ONLY", Message: "Admin access required"}
	ErrHasReferrals       = &AppError{Code: CodeConflict, Reason: "HAS_REFERRALS", Message: "User still has referrals and cannot be deleted"}
	ErrAlreadyInitialized = &AppError{Code: CodeConflict, Reason: "ALREADY_INITIALIZED", Message: "System already initialized"}
	ErrSuspended          = &AppError{Code: CodeUnauthorized, Reason: "SUSPENDED", Message: "Account is suspended"}
	ErrInvalidCredentials = &AppError{Code: CodeUnauthorized, Reason: "INVALID_CREDENTIALS", Message: "Invalid email or password"}
	ErrChatNotFound       = &AppError{Code: CodeNotFound, Reason: "CHAT_NOT_FOUND", Message: "Chat not found"}
	ErrNotParticipant     = &AppError{Code: CodeUnauthorized, Reason: "NOT_PARTICIPANT", Message: "Not a participant of this chat"}
)

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewValidationError reports malformed input.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewInvalidFilterError reports a malformed search filter.
func NewInvalidFilterError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Reason:  "INVALID_FILTER",
		Message: message,
	}
}

// NewConflictError reports a duplicate or contradictory write.
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

// NewUnauthorizedError reports an actor lacking rights.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// AsAppError returns err as an *AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}
