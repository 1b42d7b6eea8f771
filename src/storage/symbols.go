package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/models"
)

var symbolRefRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// columnLister is the subset of the store needed to expand table references.
type columnLister interface {
	ListColumn(ctx context.Context, schema, table, field string) ([]string, error)
}

// -----------------------------------------------------------------------------

// ResolveSymbols expands raw catalog entries into plain symbols. An entry of the
// form schema.table.field is replaced by the values of that column. The returned
// metadata describes every entry for the symbol registry.
func ResolveSymbols(ctx context.Context, store columnLister, sourceName string, raw []string) ([]string, []models.MSymbolMetadata, error) {
	var symbols []string
	var meta []models.MSymbolMetadata
	seen := make(map[string]struct{}, len(raw))

	add := func(sym string) {
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
		meta = append(meta, models.MSymbolMetadata{Symbol: sym, Type: models.SymbolClassic, SourceName: sourceName})
	}

	for _, entry := range raw {
		matches := symbolRefRegex.FindStringSubmatch(entry)
		if len(matches) != 4 {
			add(entry)
			continue
		}

		meta = append(meta, models.MSymbolMetadata{
			Symbol:     entry,
			Type:       models.SymbolRef,
			RefSchema:  matches[1],
			RefTable:   matches[2],
			RefField:   matches[3],
			SourceName: sourceName,
		})

		loaded, err := store.ListColumn(ctx, matches[1], matches[2], matches[3])
		if err != nil {
			return symbols, meta, fmt.Errorf("failed to load symbols from %s: %w", entry, err)
		}
		for _, sym := range loaded {
			add(sym)
		}
	}

	return symbols, meta, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) symbolsTable() string {
	return s.d.table(s.Config.Storage.Schemas.Config, "symbols")
}

// -----------------------------------------------------------------------------

func (s *sqlStore) createSymbolsTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol %s PRIMARY KEY,
			type %s,
			ref_schema %s,
			ref_table %s,
			ref_field %s,
			source_name %s,
			updated_at %s
		)
	`, s.symbolsTable(), s.d.text, s.d.text, s.d.text, s.d.text, s.d.text, s.d.text, s.d.datetime)

	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create symbols table: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) RegisterSymbols(ctx context.Context, symbols []models.MSymbolMetadata) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin symbol registration", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, type, ref_schema, ref_table, ref_field, source_name, updated_at)
		VALUES (%s)
		ON CONFLICT (symbol) DO UPDATE SET
			type = excluded.type,
			ref_schema = excluded.ref_schema,
			ref_table = excluded.ref_table,
			ref_field = excluded.ref_field,
			source_name = excluded.source_name,
			updated_at = excluded.updated_at
	`, s.symbolsTable(), s.placeholders(7))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return helpers.NewDatabaseError("prepare symbol registration", err)
	}
	defer stmt.Close()

	now := formatStoredTime(time.Now(), s.loc)
	for _, m := range symbols {
		if _, err := stmt.ExecContext(ctx, m.Symbol, m.Type, m.RefSchema, m.RefTable, m.RefField, m.SourceName, now); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("register symbol %s", m.Symbol), err)
		}
	}

	return tx.Commit()
}
