// Package store provides persistent server state backed by an embedded SQLite
// database: key/value settings plus the world seed table the instance manager
// spawns from at boot.
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a new
// string — never edit or reorder existing entries.
package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// migrations holds the ordered list of DDL/DML statements that bring the
// schema up to date. Index i corresponds to version i+1.
var migrations = []string{
	// v1 — settings key/value store
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v2 — worlds seeded as instances at boot
	`CREATE TABLE IF NOT EXISTS worlds (
		instance_id INTEGER PRIMARY KEY,
		world_id    INTEGER NOT NULL,
		created_at  INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v3 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// WorldSeed is one row of the worlds table: the instance the manager spawns
// and the world it hosts.
type WorldSeed struct {
	InstanceID uint32
	WorldID    uint32
}

// Store wraps a SQLite database and exposes server-state operations.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any pending
// migrations. Use ":memory:" for ephemeral in-process storage (tests).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Allow multiple read connections but serialise writes.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[store] busy_timeout: %v (non-fatal)", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema_migrations table (if absent) and applies any
// migrations whose version number exceeds the current maximum.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
	}
	return nil
}

// GetSetting returns the value for key, whether it existed, and any error.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting inserts or replaces a setting.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetAllSettings returns every setting as a map.
func (s *Store) GetAllSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// AddWorld records a world seed. Adding an instance id that already exists is
// an error.
func (s *Store) AddWorld(instanceID, worldID uint32) error {
	_, err := s.db.Exec(
		`INSERT INTO worlds(instance_id, world_id) VALUES(?, ?)`, instanceID, worldID)
	return err
}

// Worlds returns every world seed in instance-id order.
func (s *Store) Worlds() ([]WorldSeed, error) {
	rows, err := s.db.Query(`SELECT instance_id, world_id FROM worlds ORDER BY instance_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorldSeed
	for rows.Next() {
		var w WorldSeed
		if err := rows.Scan(&w.InstanceID, &w.WorldID); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// WorldCount returns the number of seeded worlds.
func (s *Store) WorldCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM worlds`).Scan(&n)
	return n, err
}

// Backup writes a consistent copy of the database to outPath.
func (s *Store) Backup(outPath string) error {
	_, err := s.db.Exec(`VACUUM INTO ?`, outPath)
	return err
}

// Optimize asks the query planner to refresh its statistics. Safe to call
// periodically on a live database.
func (s *Store) Optimize() error {
	_, err := s.db.Exec(`PRAGMA optimize`)
	return err
}
