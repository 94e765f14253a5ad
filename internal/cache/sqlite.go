package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/wherefn/internal/filterir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added compiled_units.hits
const currentSchemaVersion = 1

// SQLite is a Cache persisted in a SQLite database, so compiled units
// survive restarts and can be shared by processes on one host.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the cache database at path. ":memory:"
// gives a private in-memory cache.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get reads a unit and verifies its fingerprint.
func (s *SQLite) Get(ctx context.Context, key string) (*filterir.CompiledUnit, bool, error) {
	var fingerprint, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, unit FROM compiled_units WHERE source_key = ?`, key,
	).Scan(&fingerprint, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read compiled unit %s: %w", key, err)
	}

	unit, err := filterir.Unmarshal([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode compiled unit %s: %w", key, err)
	}
	got, err := filterir.Fingerprint(unit)
	if err != nil {
		return nil, false, fmt.Errorf("fingerprint compiled unit %s: %w", key, err)
	}
	if got != fingerprint {
		return nil, false, fmt.Errorf("compiled unit %s: fingerprint mismatch (stored %s, computed %s)", key, fingerprint, got)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE compiled_units SET hits = hits + 1 WHERE source_key = ?`, key,
	); err != nil {
		return nil, false, fmt.Errorf("count hit %s: %w", key, err)
	}
	return unit, true, nil
}

// Set stores unit under key. Uses ON CONFLICT DO UPDATE so concurrent
// writers of the same source converge on one row.
func (s *SQLite) Set(ctx context.Context, key string, unit *filterir.CompiledUnit) error {
	data, err := filterir.Marshal(unit)
	if err != nil {
		return fmt.Errorf("write compiled unit %s: %w", key, err)
	}
	fingerprint, err := filterir.Fingerprint(unit)
	if err != nil {
		return fmt.Errorf("write compiled unit %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compiled_units (source_key, entity, fingerprint, unit)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_key) DO UPDATE SET
			entity = excluded.entity,
			fingerprint = excluded.fingerprint,
			unit = excluded.unit
	`, key, unit.Entity, fingerprint, string(data))
	if err != nil {
		return fmt.Errorf("write compiled unit %s: %w", key, err)
	}
	return nil
}

// Hits returns how many times key was served from the cache.
func (s *SQLite) Hits(ctx context.Context, key string) (int64, error) {
	var hits int64
	err := s.db.QueryRowContext(ctx,
		`SELECT hits FROM compiled_units WHERE source_key = ?`, key,
	).Scan(&hits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return hits, err
}

// Len returns the number of stored units.
func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compiled_units`).Scan(&n)
	return n, err
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the hits column to databases created before it existed.
// New databases get it from schema.sql.
func migrateToV1(db *sql.DB) error {
	var n int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('compiled_units') WHERE name = 'hits'`,
	).Scan(&n); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE compiled_units ADD COLUMN hits INTEGER NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
