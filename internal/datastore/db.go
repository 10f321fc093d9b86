package datastore

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection shared by the request store and the
// rule assignment store.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewDB initializes a new DB connection and ensures the schema is set up.
func NewDB(dataSourceName string, logger zerolog.Logger) (*DB, error) {
	dbLogger := logger.With().Str("component", "DB").Logger()
	dbLogger.Info().Str("db_path", dataSourceName).Msg("Initializing database connection")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, common.WrapErrorf(err, "failed to create database directory %s", dbDir)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, common.WrapErrorf(err, "sql.Open failed for %s", dataSourceName)
	}

	// The store design assumes a single logical writer; a second connection
	// would only contend on sqlite's file lock.
	dbInstance.SetMaxOpenConns(1)

	db := &DB{db: dbInstance, logger: dbLogger}
	if err := db.initSchema(); err != nil {
		db.Close()
		return nil, common.WrapError(err, "failed to initialize schema")
	}

	dbLogger.Info().Str("path", dataSourceName).Msg("Database initialized and schema verified")
	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DB) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS network_requests (
		id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		url TEXT NOT NULL,
		method TEXT NOT NULL,
		domain TEXT NOT NULL,
		resource_type TEXT,
		initiator TEXT,
		initiator_type TEXT NOT NULL,
		extension_id TEXT,
		extension_name TEXT,
		tab_id INTEGER NOT NULL DEFAULT -1,
		frame_id INTEGER NOT NULL DEFAULT 0,
		detected_by TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_network_requests_ts ON network_requests(ts);
	CREATE INDEX IF NOT EXISTS idx_network_requests_extension ON network_requests(extension_id);

	CREATE TABLE IF NOT EXISTS rule_assignments (
		rule_id INTEGER PRIMARY KEY,
		extension_id TEXT NOT NULL UNIQUE
	);
	`
	if _, err := d.db.Exec(query); err != nil {
		d.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	return nil
}
