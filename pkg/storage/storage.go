// Package storage caches downloaded grant archives on disk and keeps a
// small per-archive ledger of conversions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no archive is stored under a name.
var ErrNotFound = errors.New("archive not found")

// FileInfo contains metadata about a stored archive
type FileInfo struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Size        int64       `json:"size"`
	ContentType string      `json:"content_type"`
	Path        string      `json:"path"` // Internal storage path
	CreatedAt   time.Time   `json:"created_at"`
	Conversion  *Conversion `json:"conversion,omitempty"`
}

// Conversion records a completed conversion of a stored archive.
type Conversion struct {
	JobID      uuid.UUID `json:"job_id"`
	OutputPath string    `json:"output_path"`
	Records    int       `json:"records"`
	At         time.Time `json:"at"`
}

// Storage defines the archive cache operations
type Storage interface {
	// Put stores an archive under name, replacing any previous copy
	Put(ctx context.Context, name string, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored archive
	Open(ctx context.Context, name string) (io.ReadCloser, *FileInfo, error)

	// Stat returns metadata without opening the archive
	Stat(ctx context.Context, name string) (*FileInfo, error)

	// LocalPath returns a filesystem path for tools that need random access (zip)
	LocalPath(ctx context.Context, name string) (string, error)

	// Delete removes a stored archive and its metadata
	Delete(ctx context.Context, name string) error

	// List returns all stored archives
	List(ctx context.Context) ([]*FileInfo, error)

	// MarkConverted records a successful conversion of name
	MarkConverted(ctx context.Context, name string, conv Conversion) error

	// IsConverted reports whether name has a recorded conversion
	IsConverted(ctx context.Context, name string) (bool, error)
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
)

// Config holds storage configuration
type Config struct {
	Type      StorageType
	LocalPath string
}

// New creates a new Storage implementation based on configuration
func New(cfg *Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
