package store

import (
	"fmt"

	"github.com/rpggio/memengine/internal/store/migrations"
)

// OpenProjectDB opens (and migrates) a single project's ai.db.
func OpenProjectDB(path string, role Role) (*DB, error) {
	db, err := Open(path, role)
	if err != nil {
		return nil, err
	}
	if err := migrations.ApplyProject(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate project db: %w", err)
	}
	return db, nil
}

// OpenRegistryDB opens (and migrates) the global registry.db.
func OpenRegistryDB(path string, role Role) (*DB, error) {
	db, err := Open(path, role)
	if err != nil {
		return nil, err
	}
	if err := migrations.ApplyRegistry(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate registry db: %w", err)
	}
	return db, nil
}

// OpenSharedDB opens (and migrates) the global shared.db.
func OpenSharedDB(path string, role Role) (*DB, error) {
	db, err := Open(path, role)
	if err != nil {
		return nil, err
	}
	if err := migrations.ApplyShared(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate shared db: %w", err)
	}
	return db, nil
}
