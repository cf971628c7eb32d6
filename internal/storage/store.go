// Package storage is the durable key-value layer behind favorites and the
// user session. Every backend stores opaque byte values under string keys.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/drallgood/bookfinder/internal/logger"
)

// Logical keys
const (
	KeyFavorites = "bookFinderFavorites"
	KeyUser      = "bookFinderUser"
)

// Backend drivers
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// ErrNotFound is returned by Get when the key has no record
var ErrNotFound = errors.New("storage: record not found")

// Store is a durable key-value store.
// Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and locates a backend
type Config struct {
	Driver string
	Path   string
}

// Open opens the backend named by cfg.Driver
func Open(cfg Config, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.ForComponent("storage")
	}

	switch cfg.Driver {
	case DriverSQLite, "":
		return OpenSQLite(cfg.Path, log)
	case DriverFile:
		return OpenFile(cfg.Path, log)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// ParseError reports a stored record that could not be decoded
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("storage: corrupt record %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadJSON reads key and decodes it into v.
// It returns ErrNotFound for a missing key and *ParseError for undecodable data.
func LoadJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Key: key, Err: err}
	}
	return nil
}

// SaveJSON encodes v and writes it under key
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.Put(ctx, key, data)
}
