package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDirName = ".meta"

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(filepath.Join(basePath, metaDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Put stores an archive and returns its metadata. The content is written to
// a temporary file first so a reader never sees a partial archive.
func (s *LocalStorage) Put(ctx context.Context, name string, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	storedName := sanitizeFilename(name)
	tmp, err := os.CreateTemp(s.basePath, "."+storedName+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()

	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.basePath, storedName)); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	info := &FileInfo{
		ID:          uuid.New(),
		Name:        name,
		Size:        size,
		ContentType: contentType,
		Path:        storedName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.saveMetadata(info); err != nil {
		os.Remove(filepath.Join(s.basePath, storedName))
		return nil, err
	}

	return info, nil
}

// Open returns a reader for a stored archive
func (s *LocalStorage) Open(ctx context.Context, name string) (io.ReadCloser, *FileInfo, error) {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.basePath, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, info, nil
}

// Stat returns metadata for an archive
func (s *LocalStorage) Stat(ctx context.Context, name string) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &info, nil
}

// LocalPath returns the on-disk path of a stored archive
func (s *LocalStorage) LocalPath(ctx context.Context, name string) (string, error) {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, info.Path), nil
}

// Delete removes an archive and its metadata
func (s *LocalStorage) Delete(ctx context.Context, name string) error {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, info.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(s.metaPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	return nil
}

// List returns all stored archives
func (s *LocalStorage) List(ctx context.Context) ([]*FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, metaDirName))
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.basePath, metaDirName, entry.Name()))
		if err != nil {
			continue
		}
		var info FileInfo
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}
		files = append(files, &info)
	}

	return files, nil
}

// MarkConverted records a conversion in the archive's metadata
func (s *LocalStorage) MarkConverted(ctx context.Context, name string, conv Conversion) error {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return err
	}
	if conv.At.IsZero() {
		conv.At = time.Now().UTC()
	}
	info.Conversion = &conv
	return s.saveMetadata(info)
}

// IsConverted reports whether a conversion was recorded for name
func (s *LocalStorage) IsConverted(ctx context.Context, name string) (bool, error) {
	info, err := s.Stat(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return info.Conversion != nil, nil
}

func (s *LocalStorage) metaPath(name string) string {
	return filepath.Join(s.basePath, metaDirName, sanitizeFilename(name)+".json")
}

// saveMetadata saves archive metadata to a JSON file
func (s *LocalStorage) saveMetadata(info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(s.metaPath(info.Name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
