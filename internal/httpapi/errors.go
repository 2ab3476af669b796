package httpapi

import (
	"errors"
	"net/http"

	"github.com/joelkehle/basin-analysis/internal/archive"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeTimeout     = "timeout"
	CodeInternal    = "internal"
)

// Error is the JSON error body. Transient tells the client a retry may succeed.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
	Status    int    `json:"-"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string, transient bool) *Error {
	return &Error{Code: code, Message: message, Transient: transient, Status: statusForCode(code)}
}

func validationError(err error) *Error { return newError(CodeValidation, err.Error(), false) }

// asError maps store and pipeline errors onto response errors.
func asError(err error) *Error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, archive.ErrNotFound):
		return newError(CodeNotFound, err.Error(), false)
	default:
		return newError(CodeInternal, err.Error(), true)
	}
}
