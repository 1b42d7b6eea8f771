package interfaces

import (
	"context"
	"time"

	"ta-fetcher/src/models"
)

// -----------------------------------------------------------------------------
// IConfigStore persists runtime state as (name, key, value) rows.
// -----------------------------------------------------------------------------

type IConfigStore interface {

	// SaveRuntimeConfig upserts every key of cfg under cfg.Name.
	SaveRuntimeConfig(ctx context.Context, cfg models.MRuntimeConfig) error

	// -----------------------------------------------------------------------------

	// LoadRuntimeConfig overlays the stored rows for name onto the defaults.
	LoadRuntimeConfig(ctx context.Context, name string) (models.MRuntimeConfig, error)
}

// -----------------------------------------------------------------------------
// IResultSink stores OHLC bars, idempotently keyed by datetime.
// -----------------------------------------------------------------------------

type IResultSink interface {

	// UpsertOHLC inserts rows of a single product, ignoring existing datetimes.
	// Returns helpers.ErrMalformedBatch for an empty or mixed-product batch.
	UpsertOHLC(ctx context.Context, rows []models.MOHLCRow) error

	// -----------------------------------------------------------------------------

	// UpsertDailyOHLC does the same for daily rollup bars.
	UpsertDailyOHLC(ctx context.Context, rows []models.MOHLCRow) error
}

// -----------------------------------------------------------------------------
// ITickSink stores historical ticks.
// -----------------------------------------------------------------------------

type ITickSink interface {

	// UpsertTicks inserts ticks for product, ignoring existing (datetime, sequence) pairs.
	UpsertTicks(ctx context.Context, product string, rows []models.MTickRow) error

	// -----------------------------------------------------------------------------

	// LatestTickDate returns the newest stored tick time for product, or nil.
	LatestTickDate(ctx context.Context, product string) (*time.Time, error)
}

// -----------------------------------------------------------------------------
// IStore is the full storage backend (SQLite or Postgres).
// -----------------------------------------------------------------------------

type IStore interface {
	IConfigStore
	IResultSink
	ITickSink

	// Initialize opens the connection and creates the shared tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// QueryOHLC returns up to limit of the newest bars of product, oldest first.
	QueryOHLC(ctx context.Context, product string, daily bool, limit int) ([]models.MOHLCRow, error)

	// -----------------------------------------------------------------------------

	// ListColumn returns the distinct values of schema.table.field in ascending order.
	ListColumn(ctx context.Context, schema, table, field string) ([]string, error)

	// -----------------------------------------------------------------------------

	// RegisterSymbols upserts catalog provenance rows into the symbol registry.
	RegisterSymbols(ctx context.Context, symbols []models.MSymbolMetadata) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
