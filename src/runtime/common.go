package runtime

import (
	"time"

	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/models"

	"github.com/google/uuid"
)

// Status texts shared by both runtimes.
const (
	statusStopped  = "Stopped."
	statusWaiting  = "Waiting for vendor."
	statusUpdating = "Updating: "
)

// vendorReady is the part of the vendor session every runtime polls before work.
type vendorReady interface {
	Ready() bool
}

// -----------------------------------------------------------------------------

// waitVendor polls v up to attempts times, interval apart. It gives up early
// when stop is closed.
func waitVendor(v vendorReady, attempts int, interval time.Duration, stop <-chan struct{}) bool {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if v.Ready() {
			return true
		}
		select {
		case <-stop:
			return false
		case <-time.After(interval):
		}
	}
	return v.Ready()
}

// -----------------------------------------------------------------------------

func publish(p interfaces.IEventPublisher, source, event, symbol string, code string, status models.MStatusData) {
	if p == nil {
		return
	}
	p.Publish(models.MStatusEvent{
		ID:        uuid.NewString(),
		Source:    source,
		Event:     event,
		Symbol:    symbol,
		Code:      code,
		Status:    &status,
		Timestamp: time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
