package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "job error", err: NewJobError(ErrNotFound, "gone"), want: ErrNotFound},
		{name: "wrapped job error", err: fmt.Errorf("outer: %w", NewJobError(ErrForbidden, "nope")), want: ErrForbidden},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTimeout},
		{name: "canceled", err: context.Canceled, want: ErrCanceled},
		{name: "plain error", err: errors.New("boom"), want: ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")

	wrapped := WrapError(ErrUnreachable, cause)
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "connection refused", wrapped.Message)

	prefixed := WrapErrorf(ErrUnreachable, cause, "fetching %s", "vod")
	assert.True(t, errors.Is(prefixed, cause))
	assert.Equal(t, "fetching vod: connection refused", prefixed.Message)
}

func TestAsJobError(t *testing.T) {
	je := NewJobError(ErrTotalRenderFailure, "all clips failed")
	assert.Same(t, je, AsJobError(je))

	converted := AsJobError(context.DeadlineExceeded)
	require.NotNil(t, converted)
	assert.Equal(t, ErrTimeout, converted.Kind)
}

func TestJobClone(t *testing.T) {
	now := time.Now()
	job := &Job{
		ID:     "abc",
		Status: JobStatusCompleted,
		Results: Results{
			ClipFiles:      []string{"clip_1.mp4"},
			ClipTimestamps: []float64{12},
			Summary:        &AnalysisSummary{Duration: 60},
		},
		Error:       NewJobError(ErrInternal, "x"),
		CompletedAt: &now,
	}

	clone := job.Clone()
	clone.Results.ClipFiles[0] = "mutated"
	clone.Results.Summary.Duration = 999
	clone.Error.Message = "mutated"

	assert.Equal(t, "clip_1.mp4", job.Results.ClipFiles[0])
	assert.Equal(t, 60.0, job.Results.Summary.Duration)
	assert.Equal(t, "x", job.Error.Message)
}
