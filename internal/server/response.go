package server

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type success struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

type failure struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Info    string            `json:"info,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// requestID returns the ID assigned by the request ID middleware, falling back
// to the incoming X-Request-ID header.
func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// HandleSuccess writes a standardized success response.
func HandleSuccess(logger *zap.Logger, c echo.Context, data any) error {
	logger.Info("http.response.success",
		zap.String("request_id", requestID(c)),
		zap.String("path", c.Path()),
	)
	return c.JSON(http.StatusOK, success{Code: CodeOK, Message: "success", Data: data})
}

// HandleError writes a standardized error response. Internal errors keep their
// cause out of the body.
func HandleError(logger *zap.Logger, c echo.Context, err error) error {
	appErr := toAppError(err)
	fields := []zap.Field{
		zap.String("request_id", requestID(c)),
		zap.String("path", c.Path()),
		zap.String("app_code", string(appErr.Code)),
		zap.Error(err),
	}
	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("http.response.error", fields...)
	} else {
		logger.Warn("http.response.error", fields...)
	}
	body := failure{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Raw != nil && appErr.Code != CodeInternal {
		body.Info = appErr.Raw.Error()
	}
	return c.JSON(appErr.HTTPCode, body)
}

// Validator implements echo.Validator using go-playground/validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator that reports JSON field names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate performs struct validation.
func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}
