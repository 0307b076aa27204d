package http

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes carried in API error bodies.
const (
	CodeBadRequest       = "ERR_BAD_REQUEST"
	CodeInvalidTimeframe = "ERR_INVALID_TIMEFRAME"
	CodeNotFound         = "ERR_NOT_FOUND"
	CodeNoData           = "ERR_NO_DATA"
	CodeTooManyRequests  = "ERR_TOO_MANY_REQUESTS"
	CodeUnavailable      = "ERR_UNAVAILABLE"
	CodeInternal         = "ERR_INTERNAL"
)

// AppError is an error the API reports to the client as is.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`

	// RetryAfter becomes the Retry-After header when set.
	RetryAfter time.Duration `json:"-"`
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

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam attaches a value the client can render without parsing Message.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// InvalidTimeframeError rejects a timeframe outside the supported set.
func InvalidTimeframeError(field string, err error) *AppError {
	e := NewAppError(CodeInvalidTimeframe, field, err.Error(), http.StatusBadRequest)
	e.Err = err
	return e
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(CodeNotFound, "", fmt.Sprintf(format, a...), http.StatusNotFound)
}

// NoDataError reports that nothing is stored for symbol at timeframe.
func NoDataError(what, symbol, timeframe string) *AppError {
	return NewAppError(CodeNoData, "", fmt.Sprintf("no %s %s for %s", timeframe, what, symbol), http.StatusNotFound).
		WithParam("symbol", symbol).
		WithParam("timeframe", timeframe)
}

// TooManyRequestsError asks the client to come back after retryAfter.
func TooManyRequestsError(message string, retryAfter time.Duration) *AppError {
	e := NewAppError(CodeTooManyRequests, "", message, http.StatusTooManyRequests)
	if retryAfter > 0 {
		e.RetryAfter = retryAfter
		e.WithParam("retry_after_seconds", retryAfterSeconds(retryAfter))
	}
	return e
}

// UnavailableError reports a feature that is switched off in this deployment.
func UnavailableError(message string) *AppError {
	return NewAppError(CodeUnavailable, "", message, http.StatusServiceUnavailable)
}

func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
