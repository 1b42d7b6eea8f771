package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
)

// dialect captures the SQL differences between the SQLite and Postgres backends.
type dialect struct {
	name string

	// table returns the fully quoted name of table inside schema.
	table func(schema, table string) string

	// placeholder returns the i-th (1-based) bind parameter.
	placeholder func(i int) string

	// exists reports whether table is present in schema.
	exists func(ctx context.Context, db *sql.DB, schema, table string) (bool, error)

	serialPK string
	datetime string
	text     string
	integer  string
	bigint   string
	real     string
	boolean  string
}

// -----------------------------------------------------------------------------

// sqlStore implements the storage contracts on database/sql for one dialect.
type sqlStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger

	d        dialect
	loc      *time.Location
	ensured  sync.Map // quoted table name -> struct{}
	ensureMu sync.Mutex
}

// -----------------------------------------------------------------------------

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// -----------------------------------------------------------------------------

func (s *sqlStore) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.d.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

// -----------------------------------------------------------------------------
// Table Definitions
// -----------------------------------------------------------------------------

func (s *sqlStore) configTable() string {
	return s.d.table(s.Config.Storage.Schemas.Config, s.Config.Name)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) createConfigTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id %s,
			"name" %s NOT NULL,
			"key" VARCHAR(20) NOT NULL,
			"value" %s,
			CONSTRAINT _name_key_uc UNIQUE ("name", "key")
		)
	`, s.configTable(), s.d.serialPK, s.d.text, s.d.text)

	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create config table: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) ohlcTableDDL(table, indexBase string) []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				"datetime" %s NOT NULL UNIQUE,
				"Date" %s,
				"Product" VARCHAR(20),
				"TimeSn" %s,
				"TimeSn_Dply" %s,
				"Quantity" %s,
				"Volume" %s,
				"OPrice" %s,
				"HPrice" %s,
				"LPrice" %s,
				"CPrice" %s
			)
		`, table, s.d.datetime, s.d.integer, s.d.integer, s.d.integer, s.d.bigint, s.d.bigint,
			s.d.real, s.d.real, s.d.real, s.d.real),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ("Date")`, quoteIdent(indexBase+"_date_idx"), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ("TimeSn")`, quoteIdent(indexBase+"_timesn_idx"), table),
	}
}

// -----------------------------------------------------------------------------

func (s *sqlStore) tickTableDDL(table string) []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s,
				"datetime" %s NOT NULL,
				"Prod" VARCHAR(20),
				"Sequence" %s,
				"Match_Time" %s,
				"Match_Price" %s,
				"Match_Quantity" %s,
				"Match_Volume" %s,
				"Is_TryMatch" %s,
				"BS" %s,
				"BP_1_Pre" %s,
				"SP_1_Pre" %s,
				UNIQUE ("datetime", "Sequence")
			)
		`, table, s.d.serialPK, s.d.datetime, s.d.bigint, s.d.real, s.d.real, s.d.bigint, s.d.bigint,
			s.d.boolean, s.d.integer, s.d.real, s.d.real),
	}
}

// -----------------------------------------------------------------------------

// ensureTable runs ddl once per table for the lifetime of the store.
func (s *sqlStore) ensureTable(ctx context.Context, table string, ddl []string) error {
	if _, ok := s.ensured.Load(table); ok {
		return nil
	}

	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	if _, ok := s.ensured.Load(table); ok {
		return nil
	}
	for _, stmt := range ddl {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}
	}
	s.ensured.Store(table, struct{}{})
	return nil
}

func (s *sqlStore) tableExists(ctx context.Context, schema, table string) (bool, error) {
	ok, err := s.d.exists(ctx, s.DB, schema, table)
	if err != nil {
		return false, helpers.NewDatabaseError("check table", err)
	}
	return ok, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Persisted Config Store
// -----------------------------------------------------------------------------

func (s *sqlStore) SaveRuntimeConfig(ctx context.Context, cfg models.MRuntimeConfig) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin config save", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s ("name", "key", "value")
		VALUES (%s)
		ON CONFLICT ("name", "key") DO UPDATE SET "value" = excluded."value"
	`, s.configTable(), s.placeholders(3))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return helpers.NewDatabaseError("prepare config save", err)
	}
	defer stmt.Close()

	for _, row := range cfg.Rows() {
		var value interface{}
		if row.Value != nil {
			value = *row.Value
		}
		if _, err := stmt.ExecContext(ctx, row.Name, row.Key, value); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("save config key %s", row.Key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit config save", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) LoadRuntimeConfig(ctx context.Context, name string) (models.MRuntimeConfig, error) {
	cfg := models.MRuntimeConfig{Name: name}

	query := fmt.Sprintf(`SELECT "key", "value" FROM %s WHERE "name" = %s`, s.configTable(), s.d.placeholder(1))
	rows, err := s.DB.QueryContext(ctx, query, name)
	if err != nil {
		return cfg, helpers.NewDatabaseError("load config", err)
	}
	defer rows.Close()

	var stored []models.MConfigRow
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return cfg, helpers.NewDatabaseError("scan config row", err)
		}
		row := models.MConfigRow{Name: name, Key: key}
		if value.Valid {
			v := value.String
			row.Value = &v
		}
		stored = append(stored, row)
	}
	if err := rows.Err(); err != nil {
		return cfg, helpers.NewDatabaseError("iterate config rows", err)
	}

	cfg.ApplyRows(stored)
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Result Sink
// -----------------------------------------------------------------------------

// batchProduct returns the single product shared by rows.
func batchProduct(rows []models.MOHLCRow) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: empty batch", helpers.ErrMalformedBatch)
	}
	product := rows[0].Product
	if product == "" {
		return "", fmt.Errorf("%w: missing product", helpers.ErrMalformedBatch)
	}
	for _, r := range rows[1:] {
		if r.Product != product {
			return "", fmt.Errorf("%w: mixed products %q and %q", helpers.ErrMalformedBatch, product, r.Product)
		}
	}
	return product, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) UpsertOHLC(ctx context.Context, rows []models.MOHLCRow) error {
	return s.upsertBars(ctx, s.Config.Storage.Schemas.OHLC, rows)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) UpsertDailyOHLC(ctx context.Context, rows []models.MOHLCRow) error {
	return s.upsertBars(ctx, s.Config.Storage.Schemas.OHLCD, rows)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) upsertBars(ctx context.Context, schema string, rows []models.MOHLCRow) error {
	product, err := batchProduct(rows)
	if err != nil {
		return err
	}

	table := s.d.table(schema, product)
	if err := s.ensureTable(ctx, table, s.ohlcTableDDL(table, schema+"_"+product)); err != nil {
		return helpers.NewDatabaseError("ensure ohlc table", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin ohlc upsert", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s ("datetime", "Date", "Product", "TimeSn", "TimeSn_Dply", "Quantity", "Volume", "OPrice", "HPrice", "LPrice", "CPrice")
		VALUES (%s)
		ON CONFLICT ("datetime") DO NOTHING
	`, table, s.placeholders(11))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return helpers.NewDatabaseError("prepare ohlc upsert", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if r.Datetime.IsZero() {
			if r, err = r.WithDatetime(s.loc); err != nil {
				return fmt.Errorf("%w: %v", helpers.ErrMalformedBatch, err)
			}
		}
		_, err := stmt.ExecContext(ctx, formatStoredTime(r.Datetime, s.loc), r.Date, r.Product, r.TimeSn, r.TimeSnDply,
			r.Quantity, r.Volume, r.OPrice, r.HPrice, r.LPrice, r.CPrice)
		if err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("insert bar %s", product), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit ohlc upsert", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) QueryOHLC(ctx context.Context, product string, daily bool, limit int) ([]models.MOHLCRow, error) {
	schema := s.Config.Storage.Schemas.OHLC
	if daily {
		schema = s.Config.Storage.Schemas.OHLCD
	}
	if limit <= 0 {
		limit = 500
	}

	table := s.d.table(schema, product)
	exists, err := s.tableExists(ctx, schema, product)
	if err != nil || !exists {
		return []models.MOHLCRow{}, err
	}

	query := fmt.Sprintf(`
		SELECT "datetime", "Date", "Product", "TimeSn", "TimeSn_Dply", "Quantity", "Volume", "OPrice", "HPrice", "LPrice", "CPrice"
		FROM %s ORDER BY "datetime" DESC LIMIT %d
	`, table, limit)

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, helpers.NewDatabaseError("query ohlc", err)
	}
	defer rows.Close()

	var out []models.MOHLCRow
	for rows.Next() {
		var r models.MOHLCRow
		var dt string
		if err := rows.Scan(&dt, &r.Date, &r.Product, &r.TimeSn, &r.TimeSnDply, &r.Quantity, &r.Volume,
			&r.OPrice, &r.HPrice, &r.LPrice, &r.CPrice); err != nil {
			return nil, helpers.NewDatabaseError("scan ohlc", err)
		}
		if r.Datetime, err = parseStoredTime(dt, s.loc); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("iterate ohlc", err)
	}

	// Oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Tick Sink
// -----------------------------------------------------------------------------

func (s *sqlStore) UpsertTicks(ctx context.Context, product string, rows []models.MTickRow) error {
	if product == "" {
		return fmt.Errorf("%w: missing product", helpers.ErrMalformedBatch)
	}
	if len(rows) == 0 {
		return nil
	}

	schema := s.Config.Storage.Schemas.Tick
	table := s.d.table(schema, product)
	if err := s.ensureTable(ctx, table, s.tickTableDDL(table)); err != nil {
		return helpers.NewDatabaseError("ensure tick table", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin tick upsert", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s ("datetime", "Prod", "Sequence", "Match_Time", "Match_Price", "Match_Quantity", "Match_Volume", "Is_TryMatch", "BS", "BP_1_Pre", "SP_1_Pre")
		VALUES (%s)
		ON CONFLICT ("datetime", "Sequence") DO NOTHING
	`, table, s.placeholders(11))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return helpers.NewDatabaseError("prepare tick upsert", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, formatStoredTime(r.Datetime, s.loc), r.Prod, r.Sequence, r.MatchTime, r.MatchPrice,
			r.MatchQuantity, r.MatchVolume, r.IsTryMatch, r.BS, r.BP1Pre, r.SP1Pre)
		if err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("insert tick %s", product), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit tick upsert", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) LatestTickDate(ctx context.Context, product string) (*time.Time, error) {
	schema := s.Config.Storage.Schemas.Tick
	exists, err := s.tableExists(ctx, schema, product)
	if err != nil || !exists {
		return nil, err
	}

	var latest sql.NullString
	query := fmt.Sprintf(`SELECT MAX("datetime") FROM %s`, s.d.table(schema, product))
	if err := s.DB.QueryRowContext(ctx, query).Scan(&latest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, helpers.NewDatabaseError("latest tick", err)
	}
	if !latest.Valid || latest.String == "" {
		return nil, nil
	}

	t, err := parseStoredTime(latest.String, s.loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// -----------------------------------------------------------------------------
// Catalog support
// -----------------------------------------------------------------------------

func (s *sqlStore) ListColumn(ctx context.Context, schema, table, field string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s ORDER BY 1`, quoteIdent(field), s.d.table(schema, table))

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, helpers.NewDatabaseError(fmt.Sprintf("list %s.%s.%s", schema, table, field), err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid && v.String != "" {
			values = append(values, v.String)
		}
	}
	return values, rows.Err()
}

// -----------------------------------------------------------------------------
// Time encoding
// -----------------------------------------------------------------------------

// formatStoredTime renders t as exchange wall-clock time without a zone.
func formatStoredTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(models.DatetimeLayout)
}

// -----------------------------------------------------------------------------

var storedLayouts = []string{
	models.DatetimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// parseStoredTime reads back a stored timestamp as wall-clock time in loc.
func parseStoredTime(v string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range storedLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
	}
	return time.Time{}, helpers.NewDatabaseError(fmt.Sprintf("unrecognized stored time %q", v), nil)
}
