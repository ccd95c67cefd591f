// Package backup performs an online backup of a project's sqlite database
// using VACUUM INTO, which sqlite guarantees is consistent under concurrent
// readers/writers without taking an exclusive lock on the source file.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rpggio/memengine/internal/store"
)

// Result describes a completed backup.
type Result struct {
	SourcePath string
	DestPath   string
	Bytes      int64
	TakenAt    time.Time
}

// Service runs online backups against an already-open project database.
type Service struct {
	db      *store.DB
	destDir string
	now     func() time.Time
}

func New(db *store.DB, destDir string) *Service {
	return &Service{db: db, destDir: destDir, now: time.Now}
}

// Run vacuums the connection's database into a fresh file under destDir,
// named after sourceLabel plus a timestamp, and returns its size.
func (s *Service) Run(ctx context.Context, sourceLabel string) (*Result, error) {
	if err := os.MkdirAll(s.destDir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create dest dir: %w", err)
	}

	taken := s.now()
	destPath := filepath.Join(s.destDir, fmt.Sprintf("%s-%s.sqlite", sourceLabel, taken.UTC().Format("20060102T150405Z")))

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return nil, fmt.Errorf("backup: vacuum into %s: %w", destPath, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("backup: stat result: %w", err)
	}

	return &Result{
		SourcePath: sourceLabel,
		DestPath:   destPath,
		Bytes:      info.Size(),
		TakenAt:    taken,
	}, nil
}

// Prune deletes backups in destDir older than keepFor, matching the naming
// scheme Run produces for label. Best-effort: stat/remove errors on
// individual files are skipped rather than aborting the whole pass.
func (s *Service) Prune(label string, keepFor time.Duration) (removed int, err error) {
	entries, err := os.ReadDir(s.destDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("backup: read dest dir: %w", err)
	}

	cutoff := s.now().Add(-keepFor)
	prefix := label + "-"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		info, statErr := entry.Info()
		if statErr != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(filepath.Join(s.destDir, name)); rmErr == nil {
				removed++
			}
		}
	}
	return removed, nil
}
