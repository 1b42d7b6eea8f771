package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoffEventuallySucceeds(t *testing.T) {
	calls := 0
	got, err := RetryWithBackoff(context.Background(), "dial", 3, time.Millisecond, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("refused")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffGivesUp(t *testing.T) {
	cause := errors.New("refused")
	_, err := RetryWithBackoff(context.Background(), "dial", 2, time.Millisecond, func() (string, error) {
		return "", cause
	})
	assert.ErrorIs(t, err, cause)
}

func TestRetryWithBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RetryWithBackoff(ctx, "dial", 5, time.Hour, func() (bool, error) {
		return false, errors.New("refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorKindsUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewDatabaseError("insert bar", cause)

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert bar: disk full", err.Error())
}
