package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies job failures so the shell can decide how to present
// them and whether a retry makes sense.
type ErrorKind string

const (
	ErrInvalidParameters    ErrorKind = "invalid_parameters"
	ErrInvalidState         ErrorKind = "invalid_state"
	ErrUnreachable          ErrorKind = "unreachable"
	ErrForbidden            ErrorKind = "forbidden"
	ErrNotFound             ErrorKind = "not_found"
	ErrUnprocessableMedia   ErrorKind = "unprocessable_media"
	ErrTimeout              ErrorKind = "timeout"
	ErrPartialRenderFailure ErrorKind = "partial_render_failure"
	ErrTotalRenderFailure   ErrorKind = "total_render_failure"
	ErrCanceled             ErrorKind = "canceled"
	ErrInternal             ErrorKind = "internal_error"
)

// JobError is a structured failure recorded on a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	err     error
}

// NewJobError creates a classified error with a formatted message.
func NewJobError(kind ErrorKind, format string, args ...any) *JobError {
	return &JobError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error while preserving it for Unwrap.
func WrapError(kind ErrorKind, err error) *JobError {
	return &JobError{Kind: kind, Message: err.Error(), err: err}
}

// WrapErrorf classifies an underlying error with a contextual message
// prefix.
func WrapErrorf(kind ErrorKind, err error, format string, args ...any) *JobError {
	return &JobError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...) + ": " + err.Error(),
		err:     err,
	}
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.err
}

// KindOf extracts the classification from any error. Context cancellation
// and deadline errors map to Canceled and Timeout; everything else
// unclassified is an internal error.
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrCanceled
	}
	return ErrInternal
}

// AsJobError normalizes any error into a JobError suitable for storing on
// a job record.
func AsJobError(err error) *JobError {
	var je *JobError
	if errors.As(err, &je) {
		return je
	}
	return &JobError{Kind: KindOf(err), Message: err.Error(), err: err}
}
