package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/drallgood/bookfinder/internal/logger"
)

// FileVersion is the current on-disk document version
const FileVersion = "1"

type fileDocument struct {
	Version string            `json:"version"`
	Records map[string]string `json:"records"`
}

// File is a Store that keeps every record in a single JSON document.
// Writes go through a temp file and rename so a crash never leaves a
// half-written document behind.
type File struct {
	mu      sync.Mutex
	path    string
	records map[string]string
	logger  *logger.Logger
}

// OpenFile loads the document at path. A missing file starts empty; an
// unreadable or corrupt one is logged and also starts empty.
func OpenFile(path string, log *logger.Logger) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file storage path is required")
	}
	if log == nil {
		log = logger.ForComponent("storage")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %q: %w", filepath.Dir(path), err)
	}

	f := &File{
		path:    path,
		records: make(map[string]string),
		logger:  log,
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fresh store
	case err != nil:
		return nil, fmt.Errorf("failed to read storage file %q: %w", path, err)
	default:
		var doc fileDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			log.Warn("Storage file is corrupt, starting empty", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			break
		}
		if doc.Version != "" && doc.Version != FileVersion {
			return nil, fmt.Errorf("unsupported storage file version: %s", doc.Version)
		}
		for k, v := range doc.Records {
			f.records[k] = v
		}
	}

	log.Debug("Storage opened", map[string]interface{}{
		"driver":  DriverFile,
		"path":    path,
		"records": len(f.records),
	})
	return f, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (f *File) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.records[key]
	f.records[key] = string(value)
	if err := f.flush(); err != nil {
		if had {
			f.records[key] = prev
		} else {
			delete(f.records, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.records[key]
	if !had {
		return nil
	}
	delete(f.records, key)
	if err := f.flush(); err != nil {
		f.records[key] = prev
		return err
	}
	return nil
}

func (f *File) Close() error {
	return nil
}

// flush writes the whole document atomically. Caller holds f.mu.
func (f *File) flush() error {
	dir := filepath.Dir(f.path)

	tmpFile, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", dir, err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		if _, err := os.Stat(tmpPath); err == nil {
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fileDocument{Version: FileVersion, Records: f.records}); err != nil {
		return fmt.Errorf("failed to encode storage file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync storage file: %w", err)
	}
	// Close before rename (required on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to rename temp file to %q: %w", f.path, err)
	}
	return nil
}
