package utils

import (
	"context"
	"testing"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoffSingleSlot(t *testing.T) {
	h := NewHandoff()

	assert.True(t, h.Post(models.RtSuccess))
	assert.False(t, h.Post(models.RtDataError), "second token must be rejected")
	assert.True(t, h.Pending())

	token, err := h.Wait(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.RtSuccess, token)
	assert.False(t, h.Pending())
}

func TestHandoffDrainDiscardsStaleToken(t *testing.T) {
	h := NewHandoff()
	h.Post(models.RtDataError)

	h.Drain()
	assert.False(t, h.Pending())

	// Draining an empty slot is a no-op.
	h.Drain()
	assert.True(t, h.Post(models.RtSuccess))
}

func TestHandoffWaitReturnsOnStop(t *testing.T) {
	h := NewHandoff()
	stop := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.Wait(context.Background(), stop, 0)
		done <- err
	}()

	close(stop)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, helpers.ErrHandoffStopped)
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe stop")
	}

	// A token posted after the stop is left for the next waiter.
	assert.True(t, h.Post(models.RtSuccess))
	assert.True(t, h.Pending())
}

func TestHandoffWaitTimeoutAndCancel(t *testing.T) {
	h := NewHandoff()

	_, err := h.Wait(context.Background(), nil, 20*time.Millisecond)
	assert.ErrorIs(t, err, helpers.ErrHandoffTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Wait(ctx, nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandoffWaitReceivesLateToken(t *testing.T) {
	h := NewHandoff()

	go func() {
		time.Sleep(10 * time.Millisecond)
		h.Post(models.RtDataError)
	}()

	token, err := h.Wait(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.RtDataError, token)
}
