// Package migrations embeds the schema files and applies them in order,
// generalizing the teacher's cmd/server/main.go runEmbeddedMigrations to a
// numbered multi-file set (numbered the way golang-migrate names its files,
// without adopting its runner or CLI — see DESIGN.md). Each logical store
// (project, registry, shared) gets its own embedded subdirectory since the
// three db files never share a schema.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed project/*.up.sql
var projectFiles embed.FS

//go:embed registry/*.up.sql
var registryFiles embed.FS

//go:embed shared/*.up.sql
var sharedFiles embed.FS

// ApplyProject runs the per-project (threads/messages/bridges) schema.
func ApplyProject(db *sql.DB) error { return apply(db, projectFiles, "project") }

// ApplyRegistry runs the global registry (projects/agents/tasks) schema.
func ApplyRegistry(db *sql.DB) error { return apply(db, registryFiles, "registry") }

// ApplyShared runs the shared messaging (inbox/dead-letter) schema.
func ApplyShared(db *sql.DB) error { return apply(db, sharedFiles, "shared") }

// ProjectPendingCount reports how many embedded project migration files
// have not yet been recorded in schema_migrations — the lag the
// healthguard sweep flags when a project database was opened by a binary
// built against a newer schema than the one last applied to it.
func ProjectPendingCount(db *sql.DB) (int, error) { return pendingCount(db, projectFiles, "project") }

func pendingCount(db *sql.DB, files embed.FS, dir string) (int, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return 0, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	total := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			total++
		}
	}

	var applied int
	row := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version LIKE ?`, dir+"/%")
	if err := row.Scan(&applied); err != nil {
		return 0, fmt.Errorf("count applied migrations %s: %w", dir, err)
	}
	if lag := total - applied; lag > 0 {
		return lag, nil
	}
	return 0, nil
}

func apply(db *sql.DB, files embed.FS, dir string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version := dir + "/" + strings.TrimSuffix(name, ".up.sql")

		var applied int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		contents, err := files.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", version, err)
		}
		if _, err := tx.Exec(string(contents)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}
	return nil
}
