package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/errors"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS events (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp   INTEGER NOT NULL,
	       session     TEXT NOT NULL,
	       kind        TEXT NOT NULL CHECK (kind IN ('action', 'gesture', 'delay')),
	       action      TEXT NOT NULL DEFAULT '',
	       delay_ms    INTEGER NOT NULL DEFAULT 0 CHECK (typeof(delay_ms) = 'integer')
	   );
	   CREATE INDEX IF NOT EXISTS events_session ON events (session, timestamp);`

	dropTablesSQL = `
	   DROP TABLE IF EXISTS events;
	   DROP TABLE IF EXISTS schema_versions;`

	insertEventSQL = `
    INSERT INTO events (timestamp, session, kind, action, delay_ms)
    VALUES (?, ?, ?, ?, ?)`

	recentEventsSQL = `
    SELECT timestamp, session, kind, action, delay_ms
    FROM events
    ORDER BY id DESC
    LIMIT ?`
)

// initSchema creates the tables and records the current version.
func initSchema(db *sql.DB, log zerolog.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageInit, err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("rollback failed")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(errors.ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}
	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(errors.ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(errors.ErrStorageInit, err)
	}
	committed = true

	log.Info().Int("version", SchemaVersion).Msg("journal schema initialized")
	return nil
}

// schemaVersion returns 0 for an empty database.
func schemaVersion(db *sql.DB) (int, error) {
	var exists bool
	if err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name='schema_versions'
        )
    `).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

// ensureSchema initializes a new database, or backs up and recreates one
// whose version does not match.
func ensureSchema(db *sql.DB, path string, log zerolog.Logger) error {
	errFactory := errors.New()

	version, err := schemaVersion(db)
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageInit, fmt.Errorf("read schema version: %w", err))
	}
	if version == SchemaVersion {
		return nil
	}

	if version != 0 {
		backup := fmt.Sprintf("%s.v%d.%s.bak", path, version, time.Now().UTC().Format("20060102T150405Z"))
		if _, err := db.Exec(`VACUUM INTO ?`, backup); err != nil {
			return errFactory.Wrap(errors.ErrStorageInit, fmt.Errorf("backup %s: %w", backup, err))
		}
		log.Warn().Int("found", version).Int("want", SchemaVersion).Str("backup", backup).
			Msg("journal schema mismatch, recreating")
		if _, err := db.Exec(dropTablesSQL); err != nil {
			return errFactory.Wrap(errors.ErrStorageInit, fmt.Errorf("drop tables: %w", err))
		}
	}
	return initSchema(db, log)
}
