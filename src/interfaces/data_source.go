package interfaces

import (
	"context"
	"time"

	"ta-fetcher/src/models"
)

// -----------------------------------------------------------------------------
// ICallbacks receives the vendor's asynchronous notifications. Implementations
// must return quickly and must not panic into the vendor's delivery goroutine.
// -----------------------------------------------------------------------------

type ICallbacks interface {

	// OnConnStatus reports the outcome of a login / connection change.
	OnConnStatus(ok bool)

	// -----------------------------------------------------------------------------

	// OnUpdate delivers the latest closed bar (pre) and the in-progress bar (last).
	OnUpdate(kind models.IndicatorKind, pre, last models.MIndicatorResult)

	// -----------------------------------------------------------------------------

	// OnRcvDone delivers the complete historical batch of a subscription.
	OnRcvDone(kind models.IndicatorKind, batch []models.MIndicatorResult)
}

// -----------------------------------------------------------------------------
// IVendorConnector is the session to the market-data vendor.
// -----------------------------------------------------------------------------

type IVendorConnector interface {

	// Name returns the connector identifier
	Name() string

	// -----------------------------------------------------------------------------

	// SetCallbacks registers the receiver of vendor notifications. Must be
	// called before Login.
	SetCallbacks(cb ICallbacks)

	// -----------------------------------------------------------------------------

	// Login starts the session. The outcome arrives through OnConnStatus.
	Login(ctx context.Context, username, password string) error

	// -----------------------------------------------------------------------------

	// Subscribe requests the indicator feed for key; the history arrives through OnRcvDone.
	Subscribe(key models.MSubscriptionKey) error

	// -----------------------------------------------------------------------------

	// Unsubscribe cancels the feed for key.
	Unsubscribe(key models.MSubscriptionKey) error

	// -----------------------------------------------------------------------------

	// HistoricalTicks fetches one day of trades for product. A non-success code
	// with a nil error reports an expected condition (e.g. DATA_ERROR for today).
	HistoricalTicks(ctx context.Context, product string, date time.Time) ([]models.MTickRow, models.RtCode, error)

	// -----------------------------------------------------------------------------

	// Close terminates the session
	Close() error
}
