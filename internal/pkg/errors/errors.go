package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers a missing project, participant or content.
	ErrNotFound = errors.New("not found")
	// ErrEmptyContent means content exists but is blank.
	ErrEmptyContent = errors.New("empty content")
	// ErrGenerationFailure means the text-generation call errored or timed out.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrMalformedOutput means generated text could not be recovered into the required shape.
	ErrMalformedOutput = errors.New("malformed output")
	// ErrResourceBusy means a previous chat session did not exit within the teardown timeout.
	ErrResourceBusy = errors.New("resource busy")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// MalformedOutputError keeps the raw generated text for diagnostics.
type MalformedOutputError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *MalformedOutputError) Error() string {
	if e == nil {
		return ErrMalformedOutput.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed output: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: malformed output", e.Stage)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

func Malformed(stage, raw string, err error) error {
	return &MalformedOutputError{Stage: stage, Raw: raw, Err: err}
}

// Generation wraps a text-generation failure so callers can match ErrGenerationFailure
// while the underlying cause (timeout, http status) stays reachable.
func Generation(stage string, err error) error {
	return fmt.Errorf("%s: %w: %w", stage, ErrGenerationFailure, err)
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func EmptyContentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEmptyContent, fmt.Sprintf(format, args...))
}

func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
