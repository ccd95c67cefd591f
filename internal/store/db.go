// Package store wraps modernc.org/sqlite (the teacher's exact driver — pure
// Go, no cgo) with the pragma set and connection-role split the multi-process
// topology requires, plus one repository file per aggregate, mirroring the
// teacher's internal/sqlite/{project,record,session,activity,search}.go
// layout.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Role differentiates the pragma set applied to a connection by which
// binary opened it. Only the daemon checkpoints aggressively; short-lived
// hook/mcp/cli processes disable automatic checkpointing so they never pay
// for one under their latency budget.
type Role int

const (
	RoleDaemon Role = iota
	RoleHook
	RoleMcp
	RoleCli
)

const (
	busyTimeoutMS              = 5000
	daemonWalAutocheckpoint    = 1000
	ephemeralWalAutocheckpoint = 0
)

// DB wraps a SQLite connection pool opened against a single project (or the
// shared/registry) database file.
type DB struct {
	*sql.DB
	Role Role
}

// Open opens path (creating its parent directory if needed) and applies the
// common pragma set plus the role-conditional wal_autocheckpoint.
func Open(path string, role Role) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{DB: sqlDB, Role: role}
	if err := db.configure(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -2000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("configure pragma %q: %w", p, err)
		}
	}

	checkpoint := ephemeralWalAutocheckpoint
	if db.Role == RoleDaemon {
		checkpoint = daemonWalAutocheckpoint
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA wal_autocheckpoint = %d", checkpoint)); err != nil {
		return fmt.Errorf("configure wal_autocheckpoint: %w", err)
	}
	return nil
}

// CheckpointPassive runs a PASSIVE wal checkpoint. Daemon-only: ephemeral
// connections leave checkpointing to the daemon's background loop.
func (db *DB) CheckpointPassive() error {
	_, err := db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
	if err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}
