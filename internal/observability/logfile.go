package observability

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Size-capped rotating log file writer, adapted from the teacher's
// cmd/server/main.go logFileWriter: once the file exceeds maxLogSizeBytes
// it is truncated down to keepLogSizeBytes, dropping the oldest content.
const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// RotatingFile is an append-only log destination that self-truncates once
// it grows past maxLogSizeBytes, keeping the most recent keepLogSizeBytes.
type RotatingFile struct {
	file *os.File
	mu   sync.Mutex
}

// OpenRotatingFile opens (creating parent directories as needed) a log file
// for append, truncating it immediately if it is already oversized.
func OpenRotatingFile(path string) (*RotatingFile, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	rf := &RotatingFile{file: file}
	if err := rf.truncateIfNeeded(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (w *RotatingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.truncateIfNeeded(); err != nil {
		return n, err
	}
	return n, nil
}

// Close closes the underlying file.
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *RotatingFile) truncateIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= maxLogSizeBytes {
		return nil
	}

	buf := make([]byte, keepLogSizeBytes)
	if _, err := w.file.Seek(size-keepLogSizeBytes, io.SeekStart); err != nil {
		return err
	}
	n, err := w.file.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(buf); err != nil {
		return err
	}
	_, err = w.file.Seek(0, io.SeekEnd)
	return err
}
