// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenInvalid = errors.New("token invalid")
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized)
}

func ForbiddenError(message string) *AppError {
	return NewAppError("FORBIDDEN", message, http.StatusForbidden)
}

func ValidationError(message string) *AppError {
	return NewAppError("VALIDATION_ERROR", message, http.StatusUnprocessableEntity)
}

func TokenExpiredError() *AppError {
	return NewAppError("TOKEN_EXPIRED", "access token expired", http.StatusUnauthorized)
}

func TokenRevokedError() *AppError {
	return NewAppError("TOKEN_REVOKED", "access token revoked", http.StatusUnauthorized)
}

func TokenInvalidError() *AppError {
	return NewAppError("TOKEN_INVALID", "access token invalid", http.StatusUnauthorized)
}
