package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/openai"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps the domain error taxonomy onto HTTP status codes.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, domainerrs.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, domainerrs.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, domainerrs.ErrEmptyContent):
		return New(http.StatusUnprocessableEntity, "empty_content", err)
	case errors.Is(err, domainerrs.ErrMalformedOutput):
		return New(http.StatusBadGateway, "malformed_output", err)
	case errors.Is(err, domainerrs.ErrGenerationFailure):
		if errors.Is(err, openai.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return New(http.StatusGatewayTimeout, "generation_timeout", err)
		}
		return New(http.StatusBadGateway, "generation_failed", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}
