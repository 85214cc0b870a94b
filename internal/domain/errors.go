package domain

import (
	"errors"
	"fmt"
)

// Compliance error codes. The first nine form the closed set returned by the engine.
const (
	CodeParseParams          = "PARSE_PARAMS"
	CodeUserNotRegistered    = "USER_NOT_REGISTERED"
	CodeDailyLimitExceeded   = "DAILY_LIMIT_EXCEEDED"
	CodeMonthlyLimitExceeded = "MONTHLY_LIMIT_EXCEEDED"
	CodeSelfExcluded         = "SELF_EXCLUDED"
	CodeOnCooldown           = "ON_COOLDOWN"
	CodeInvalidLimits        = "INVALID_LIMITS"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeAgeNotVerified       = "AGE_NOT_VERIFIED"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeIdempotent   = "IDEMPOTENT"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError with the same code, so errors.Is(err, ErrOnCooldown()) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// ErrorCode returns the AppError code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func ErrParseParams(msg string) *AppError {
	return &AppError{Code: CodeParseParams, Message: msg, Status: 400}
}

func ErrUserNotRegistered() *AppError {
	return &AppError{Code: CodeUserNotRegistered, Message: "user is not registered", Status: 404}
}

func ErrDailyLimitExceeded() *AppError {
	return &AppError{Code: CodeDailyLimitExceeded, Message: "daily limit exceeded", Status: 422}
}

func ErrMonthlyLimitExceeded() *AppError {
	return &AppError{Code: CodeMonthlyLimitExceeded, Message: "monthly limit exceeded", Status: 422}
}

func ErrSelfExcluded() *AppError {
	return &AppError{Code: CodeSelfExcluded, Message: "user is self-excluded", Status: 403}
}

func ErrOnCooldown() *AppError {
	return &AppError{Code: CodeOnCooldown, Message: "user is on cooldown", Status: 403}
}

func ErrInvalidLimits() *AppError {
	return &AppError{Code: CodeInvalidLimits, Message: "daily limit must not exceed monthly limit", Status: 400}
}

func ErrInvalidSignature() *AppError {
	return &AppError{Code: CodeInvalidSignature, Message: "age verification signature is invalid", Status: 401}
}

func ErrAgeNotVerified() *AppError {
	return &AppError{Code: CodeAgeNotVerified, Message: "age has not been verified", Status: 403}
}

// Transport and infrastructure errors.

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrIdempotent(key string) *AppError {
	return &AppError{Code: CodeIdempotent, Message: fmt.Sprintf("request already processed: %s", key), Status: 409}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}
