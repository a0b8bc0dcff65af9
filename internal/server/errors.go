package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

// ErrorCode identifies an API failure class.
type ErrorCode string

const (
	CodeOK                ErrorCode = "OK"
	CodeInternal          ErrorCode = "INTERNAL"
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
	CodeInvalidOptions    ErrorCode = "INVALID_OPTIONS"
	CodeInvalidTranscript ErrorCode = "INVALID_TRANSCRIPT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeTimeout           ErrorCode = "TIMEOUT"
)

// AppError is an error with the HTTP status and public message it maps to.
type AppError struct {
	Raw      error
	HTTPCode int
	Code     ErrorCode
	Message  string
	Details  map[string]string
}

func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e AppError) Unwrap() error { return e.Raw }

// WithDetail adds a detail to the error.
func (e AppError) WithDetail(key, value string) AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     CodeInternal,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     CodeInvalidArgument,
		Message:  message,
	}
}

func ErrInvalidPayload(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadRequest,
		Code:     CodeInvalidPayload,
		Message:  "Invalid payload",
	}
}

func ErrInvalidOptions(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadRequest,
		Code:     CodeInvalidOptions,
		Message:  "Invalid search options",
	}
}

func ErrInvalidTranscript(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusUnprocessableEntity,
		Code:     CodeInvalidTranscript,
		Message:  "Transcript cannot be searched",
	}
}

func ErrNotFound(resource string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
	}
}

func ErrForbidden(message string) AppError {
	return AppError{
		HTTPCode: http.StatusForbidden,
		Code:     CodeForbidden,
		Message:  message,
	}
}

func ErrTimeout(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusServiceUnavailable,
		Code:     CodeTimeout,
		Message:  "Search did not finish in time",
	}
}

// toAppError classifies library and framework errors.
func toAppError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var cfgErr *speechmine.ConfigError
	if errors.As(err, &cfgErr) {
		return ErrInvalidOptions(err).WithDetail("field", cfgErr.Field)
	}
	var invErr *speechmine.InvariantError
	if errors.As(err, &invErr) {
		return ErrInvalidTranscript(err).
			WithDetail(invErr.Subject, fmt.Sprintf("%d", invErr.Index))
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		appErr := ErrInvalidArgument("Request validation failed")
		for _, fe := range fieldErrs {
			appErr = appErr.WithDetail(fe.Field(), fe.Tag())
		}
		return appErr
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return AppError{
			Raw:      err,
			HTTPCode: httpErr.Code,
			Code:     codeForStatus(httpErr.Code),
			Message:  http.StatusText(httpErr.Code),
		}
	}
	switch {
	case errors.Is(err, speechmine.ErrInvalidConfig):
		return ErrInvalidOptions(err)
	case errors.Is(err, os.ErrNotExist), errors.Is(err, speechmine.ErrNotFound):
		return ErrNotFound("Transcript").WithDetail("reason", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrTimeout(err)
	}
	return ErrInternal(err)
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusForbidden:
		return CodeForbidden
	case status >= 500:
		return CodeInternal
	default:
		return CodeInvalidArgument
	}
}
