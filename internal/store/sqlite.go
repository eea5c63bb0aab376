// Package store persists crew sessions in SQLite or in memory.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/soyeahso/crewbuilder/internal/logging"
)

const memoryDSN = ":memory:"

// DB is a migrated SQLite database.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens or creates the database at path and brings its schema up to
// date. ":memory:" gives a private in-memory database.
func Open(path string, log *logging.Logger) (*DB, error) {
	if log == nil {
		log = logging.Nop()
	}
	dsn := memoryDSN
	if path != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if path == memoryDSN {
		// every pooled connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{sql: sqlDB, log: log.Sub("store")}
	ctx := context.Background()
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	db.log.Debug().Str("path", path).Msg("database ready")
	return db, nil
}

// Close releases the database.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Version reports the SQLite library version behind this database.
func (db *DB) Version(ctx context.Context) (string, error) {
	return queryVersion(ctx, db.sql)
}

// SQLiteVersion reports the version of the embedded SQLite engine using a
// throwaway in-memory database.
func SQLiteVersion(ctx context.Context) (string, error) {
	sqlDB, err := sql.Open("sqlite", memoryDSN)
	if err != nil {
		return "", fmt.Errorf("opening sqlite: %w", err)
	}
	defer sqlDB.Close()
	return queryVersion(ctx, sqlDB)
}

func queryVersion(ctx context.Context, q *sql.DB) (string, error) {
	var v string
	if err := q.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v); err != nil {
		return "", fmt.Errorf("querying sqlite version: %w", err)
	}
	return v, nil
}

// schemaVersion is the highest applied migration, 0 for a fresh database.
func (db *DB) schemaVersion(ctx context.Context) (int, error) {
	if _, err := db.sql.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return 0, fmt.Errorf("creating migrations table: %w", err)
	}
	var v int
	if err := db.sql.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate applies, each in its own transaction, every migration newer than
// the schema version.
func (db *DB) migrate(ctx context.Context) error {
	current, err := db.schemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return err
	}
	return tx.Commit()
}
