package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name: "postgres",
	table: func(schema, table string) string {
		return quoteIdent(schema) + "." + quoteIdent(table)
	},
	placeholder: func(i int) string { return "$" + strconv.Itoa(i) },
	exists: func(ctx context.Context, db *sql.DB, schema, table string) (bool, error) {
		var ok bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
			schema, table,
		).Scan(&ok)
		return ok, err
	},
	serialPK: "SERIAL PRIMARY KEY",
	datetime: "TIMESTAMP",
	text:     "TEXT",
	integer:  "INTEGER",
	bigint:   "BIGINT",
	real:     "DOUBLE PRECISION",
	boolean:  "BOOLEAN",
}

// -----------------------------------------------------------------------------

type PostgresDB struct {
	sqlStore
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, loc *time.Location, log *logger.Logger) (*PostgresDB, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres storage requires a connection string")
	}
	return &PostgresDB{
		sqlStore: sqlStore{
			Config: cfg,
			Logger: log,
			d:      postgresDialect,
			loc:    loc,
		},
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	schemas := d.Config.Storage.Schemas
	for _, schema := range []string{schemas.Config, schemas.OHLC, schemas.OHLCD, schemas.Tick} {
		if schema == "" {
			continue
		}
		if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, quoteIdent(schema))); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}

	ctx := context.Background()
	if err := d.createConfigTable(ctx); err != nil {
		return err
	}
	if err := d.createSymbolsTable(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Database: %s)", d.Config.Storage.DBName)
	return nil
}
