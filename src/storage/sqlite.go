package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	_ "modernc.org/sqlite"
)

// SQLite has no schemas; tables are prefixed with the schema name instead.
var sqliteDialect = dialect{
	name: "sqlite",
	table: func(schema, table string) string {
		return quoteIdent(schema + "__" + table)
	},
	placeholder: func(int) string { return "?" },
	exists: func(ctx context.Context, db *sql.DB, schema, table string) (bool, error) {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
			schema+"__"+table,
		).Scan(&n)
		return n > 0, err
	},
	serialPK: "INTEGER PRIMARY KEY AUTOINCREMENT",
	datetime: "TEXT",
	text:     "TEXT",
	integer:  "INTEGER",
	bigint:   "INTEGER",
	real:     "REAL",
	boolean:  "INTEGER",
}

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	sqlStore
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, loc *time.Location, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("sqlite storage requires db_path")
	}
	return &AsyncSQLiteDB{
		sqlStore: sqlStore{
			Config: cfg,
			Logger: log,
			d:      sqliteDialect,
			loc:    loc,
		},
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath + "?_pragma=busy_timeout(5000)"

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	// A single writer connection; callers never query while a tx is open.
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	ctx := context.Background()
	if err := d.createConfigTable(ctx); err != nil {
		return err
	}
	if err := d.createSymbolsTable(ctx); err != nil {
		return err
	}

	d.Logger.Info("SQLite initialized at %s", d.Config.Storage.DBPath)
	return nil
}
