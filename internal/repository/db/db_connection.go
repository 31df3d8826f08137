package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// InitDB opens/creates the SQLite mirror database and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite tolerates only one writer; keep the pool tiny.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const schemaEntries = `
CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY,
    plate_number TEXT NOT NULL,
    entry_timestamp TIMESTAMP NOT NULL,
    payment_status INTEGER NOT NULL DEFAULT 0,
    exit_status INTEGER NOT NULL DEFAULT 0,
    charge_amount INTEGER,
    payment_timestamp TIMESTAMP,
    exit_timestamp TIMESTAMP
);
`

const (
	indexEntriesPlate  = `CREATE INDEX IF NOT EXISTS idx_entries_plate ON entries(plate_number);`
	indexEntriesStatus = `CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(payment_status, exit_status);`
	indexLogsOccurred  = `CREATE INDEX IF NOT EXISTS idx_logs_occurred ON system_logs(occurred_at);`
	indexAlertsTime    = `CREATE INDEX IF NOT EXISTS idx_alerts_occurred ON security_alerts(occurred_at);`
)

const schemaSystemLogs = `
CREATE TABLE IF NOT EXISTS system_logs (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    kind TEXT NOT NULL,
    plate TEXT,
    entry_id INTEGER,
    message TEXT NOT NULL
);
`

const schemaSecurityAlerts = `
CREATE TABLE IF NOT EXISTS security_alerts (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    plate TEXT,
    message TEXT NOT NULL,
    severity TEXT NOT NULL DEFAULT 'MEDIUM'
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// rollback is a no-op after commit
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaEntries,
		schemaSystemLogs,
		schemaSecurityAlerts,
		schemaUsers,
		indexEntriesPlate,
		indexEntriesStatus,
		indexLogsOccurred,
		indexAlertsTime,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
