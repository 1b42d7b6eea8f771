package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/storage"
)

// registry is the store subset used to record where symbols came from.
type registry interface {
	ListColumn(ctx context.Context, schema, table, field string) ([]string, error)
	RegisterSymbols(ctx context.Context, symbols []models.MSymbolMetadata) error
}

// -----------------------------------------------------------------------------
// StaticCatalog serves the configured list in configured order. Entries of the
// form schema.table.field are expanded from the store when one is given.
// -----------------------------------------------------------------------------

type StaticCatalog struct {
	Symbols []string
	Store   registry
	Logger  *logger.Logger
}

func (c *StaticCatalog) Name() string { return "static" }

func (c *StaticCatalog) List(ctx context.Context) ([]string, error) {
	if c.Store == nil {
		return dedupe(c.Symbols), nil
	}

	symbols, meta, err := storage.ResolveSymbols(ctx, c.Store, c.Name(), c.Symbols)
	if err != nil {
		return nil, err
	}
	if err := c.Store.RegisterSymbols(ctx, meta); err != nil && c.Logger != nil {
		c.Logger.Warning("Failed to register %d catalog symbols: %v", len(meta), err)
	}
	return symbols, nil
}

// -----------------------------------------------------------------------------
// TableCatalog reads the universe from one column of a database table.
// -----------------------------------------------------------------------------

type TableCatalog struct {
	Store  registry
	Schema string
	Table  string
	Field  string
}

func (c *TableCatalog) Name() string { return "table" }

func (c *TableCatalog) List(ctx context.Context) ([]string, error) {
	symbols, err := c.Store.ListColumn(ctx, c.Schema, c.Table, c.Field)
	if err != nil {
		return nil, err
	}
	return sortedUnique(symbols), nil
}

// -----------------------------------------------------------------------------
// HTTPCatalog downloads the universe from a URL.
// -----------------------------------------------------------------------------

type HTTPCatalog struct {
	URL     string
	Network interfaces.INetworkManager
}

func (c *HTTPCatalog) Name() string { return "http" }

func (c *HTTPCatalog) List(ctx context.Context) ([]string, error) {
	body, err := c.Network.Get(ctx, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch symbol list: %w", err)
	}
	symbols, err := ParseSymbolList(body)
	if err != nil {
		return nil, err
	}
	return sortedUnique(symbols), nil
}

// -----------------------------------------------------------------------------

// ParseSymbolList accepts a JSON array of strings, a JSON object with a
// "symbols" array, or plain text with one symbol per line.
func ParseSymbolList(body []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return []string{}, nil
	}

	switch trimmed[0] {
	case '[':
		var list []string
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, fmt.Errorf("invalid symbol array: %w", err)
		}
		return clean(list), nil
	case '{':
		var obj struct {
			Symbols []string `json:"symbols"`
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return nil, fmt.Errorf("invalid symbol object: %w", err)
		}
		return clean(obj.Symbols), nil
	}

	var list []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	return list, nil
}

// -----------------------------------------------------------------------------

func clean(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// dedupe drops repeats, keeping first occurrence order.
func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortedUnique(list []string) []string {
	out := dedupe(clean(list))
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// New builds the catalog selected by cfg.Catalog.Type.
func New(cfg *models.MConfig, store interfaces.IStore, network interfaces.INetworkManager, log *logger.Logger) (interfaces.ISymbolCatalog, error) {
	switch cfg.Catalog.Type {
	case "static":
		return &StaticCatalog{Symbols: cfg.Catalog.Symbols, Store: store, Logger: log}, nil
	case "table":
		return &TableCatalog{Store: store, Schema: cfg.Catalog.Schema, Table: cfg.Catalog.Table, Field: cfg.Catalog.Field}, nil
	case "http":
		return &HTTPCatalog{URL: cfg.Catalog.URL, Network: network}, nil
	}
	return nil, fmt.Errorf("unsupported catalog type %q", cfg.Catalog.Type)
}
