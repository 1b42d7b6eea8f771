package interfaces

import (
	"context"

	"ta-fetcher/src/models"
)

// -----------------------------------------------------------------------------
// IEventPublisher pushes runtime events to external listeners (websocket hub).
// -----------------------------------------------------------------------------

type IEventPublisher interface {
	// Publish must not block the caller for long; slow listeners are dropped.
	Publish(event models.MStatusEvent)
}

// -----------------------------------------------------------------------------
// IRunState lets the callback bridge ask whether the coordinator awaits a token.
// -----------------------------------------------------------------------------

type IRunState interface {
	IsRunning() bool
}

// -----------------------------------------------------------------------------
// ISymbolCatalog returns the universe of tradable symbols, in processing order.
// -----------------------------------------------------------------------------

type ISymbolCatalog interface {
	Name() string
	List(ctx context.Context) ([]string, error)
}
