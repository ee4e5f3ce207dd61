package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeActorNotAuthorized     ErrorCode = "ACTOR_NOT_AUTHORIZED"
	ErrCodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrCodeDuplicateDispute       ErrorCode = "DUPLICATE_DISPUTE"
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeBadRequest             ErrorCode = "BAD_REQUEST"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError          ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с предопределёнными ошибками.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf формирует ошибку с форматированным сообщением.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeActorNotAuthorized:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeInvalidTransition, ErrCodeDuplicateDispute, ErrCodeConcurrentModification:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsActorNotAuthorized(err error) bool {
	return hasCode(err, ErrCodeActorNotAuthorized)
}

func IsInvalidTransition(err error) bool {
	return hasCode(err, ErrCodeInvalidTransition)
}

func IsDuplicateDispute(err error) bool {
	return hasCode(err, ErrCodeDuplicateDispute)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsConcurrentModification(err error) bool {
	return hasCode(err, ErrCodeConcurrentModification)
}

var (
	ErrOrderNotFound          = New(ErrCodeNotFound, "заказ не найден")
	ErrDisputeNotFound        = New(ErrCodeNotFound, "спор не найден")
	ErrActorNotFound          = New(ErrCodeNotFound, "участник не найден")
	ErrUnauthorized           = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrActorNotAuthorized     = New(ErrCodeActorNotAuthorized, "недостаточно прав для этого действия")
	ErrConcurrentModification = New(ErrCodeConcurrentModification, "заказ изменяется параллельно, повторите запрос")
	ErrDuplicateDispute       = New(ErrCodeDuplicateDispute, "по заказу уже открыт спор")
)
