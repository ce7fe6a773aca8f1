package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// ErrorKind определяет категорию ошибки
type ErrorKind string

const (
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindValidation        ErrorKind = "validation_error"
	KindInternal          ErrorKind = "internal_failure"
	KindRateLimited       ErrorKind = "rate_limited"
)

// AppError представляет типизированную ошибку, которую можно отдать клиенту
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать по категории: errors.Is(err, utils.ErrForbidden)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Эталонные ошибки для errors.Is
var (
	ErrUnauthenticated   = &AppError{Kind: KindUnauthenticated}
	ErrUnauthorized      = &AppError{Kind: KindUnauthorized}
	ErrForbidden         = &AppError{Kind: KindForbidden}
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrInvalidTransition = &AppError{Kind: KindInvalidTransition}
	ErrValidation        = &AppError{Kind: KindValidation}
	ErrInternal          = &AppError{Kind: KindInternal}
	ErrRateLimited       = &AppError{Kind: KindRateLimited}
)

// NewError создаёт ошибку заданной категории
func NewError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal оборачивает сбой хранилища или инфраструктуры
func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf возвращает категорию ошибки; неизвестные ошибки считаются внутренними
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage возвращает текст, безопасный для клиента
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Внутренняя ошибка сервера"
}

// HTTPStatus сопоставляет категорию ошибки с HTTP-кодом
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return fiber.StatusUnauthorized
	case KindUnauthorized, KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindInvalidTransition:
		return fiber.StatusConflict
	case KindValidation:
		return fiber.StatusBadRequest
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	}
	return fiber.StatusInternalServerError
}
