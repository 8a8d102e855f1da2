package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage persists opaque blobs on disk under a base directory.
// Callers address blobs by the id returned from Store; the id doubles as
// the relative path so signed tokens can embed it directly.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./data"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Store writes the blob under a generated id, keeping the original
// extension so downloads carry a sensible filename.
func (s *LocalStorage) Store(data []byte, originalName string) (string, error) {
	ext := filepath.Ext(originalName)
	fileID := uuid.NewString() + ext
	if err := s.Save(fileID, data); err != nil {
		return "", err
	}
	return fileID, nil
}

// Save writes the given bytes to the provided relative path under the base dir.
func (s *LocalStorage) Save(filename string, data []byte) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file %s: %w", filename, err)
	}
	return nil
}

// Retrieve reads a stored blob back.
func (s *LocalStorage) Retrieve(fileID string) ([]byte, error) {
	path, err := s.resolve(fileID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	return data, nil
}

// Delete removes a stored blob. Missing files are not an error.
func (s *LocalStorage) Delete(fileID string) error {
	path, err := s.resolve(fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

// Path resolves the absolute path of a stored blob for streaming.
func (s *LocalStorage) Path(fileID string) (string, error) {
	return s.resolve(fileID)
}

func (s *LocalStorage) resolve(filename string) (string, error) {
	cleaned := filepath.Clean(filename)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage path %q", filename)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
