package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schemaledger/internal/retry"
)

var errAttempt = errors.New("attempt failed")

func TestIncremental(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		maxAttempts int
		failUntil   int // attempts below this return a retryable error
		fatal       bool
		wantRuns    int
		wantErr     error
	}{
		{name: "single successful try", maxAttempts: 5, failUntil: 1, wantRuns: 1},
		{name: "success on third attempt", maxAttempts: 4, failUntil: 3, wantRuns: 3},
		{name: "attempt limit exhausted", maxAttempts: 4, failUntil: 5, wantRuns: 4, wantErr: retry.ErrTooManyAttempts},
		{name: "non-retryable error stops immediately", maxAttempts: 4, fatal: true, wantRuns: 1, wantErr: errAttempt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runs := 0
			err := retry.Incremental(context.Background(), time.Millisecond, tt.maxAttempts, func(attempt int) error {
				runs++

				if tt.fatal {
					return errAttempt
				}

				if attempt < tt.failUntil {
					return retry.Retryable(errAttempt, attempt)
				}

				return nil
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantRuns, runs)
		})
	}
}

func TestIncremental_contextCancelled_stopsWaiting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0

	err := retry.Incremental(ctx, time.Hour, 3, func(attempt int) error {
		runs++
		cancel()

		return retry.Retryable(errAttempt, attempt)
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, runs)
}

func TestRetryable_nil_returnsNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, retry.Retryable(nil, 1))
}
