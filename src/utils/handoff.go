package utils

import (
	"context"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/models"
)

// Handoff carries one completion token from the callback bridge to the
// coordinator. At most one token is pending at any time.
type Handoff struct {
	slot chan models.RtCode
}

// -----------------------------------------------------------------------------

func NewHandoff() *Handoff {
	return &Handoff{slot: make(chan models.RtCode, 1)}
}

// -----------------------------------------------------------------------------

// Drain discards a pending token, if any.
func (h *Handoff) Drain() {
	select {
	case <-h.slot:
	default:
	}
}

// -----------------------------------------------------------------------------

// Post offers a token without blocking. It returns false when a token is
// already pending; the pending one is kept.
func (h *Handoff) Post(token models.RtCode) bool {
	select {
	case h.slot <- token:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// Pending reports whether a token is waiting to be consumed.
func (h *Handoff) Pending() bool {
	return len(h.slot) > 0
}

// -----------------------------------------------------------------------------

// Wait blocks until a token arrives, stop is closed, ctx is done, or timeout
// elapses. A zero timeout waits indefinitely. No token is consumed on error.
func (h *Handoff) Wait(ctx context.Context, stop <-chan struct{}, timeout time.Duration) (models.RtCode, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case token := <-h.slot:
		return token, nil
	case <-stop:
		return models.RtFail, helpers.ErrHandoffStopped
	case <-ctx.Done():
		return models.RtFail, ctx.Err()
	case <-expired:
		return models.RtFail, helpers.ErrHandoffTimeout
	}
}
