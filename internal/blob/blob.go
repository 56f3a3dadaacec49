package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mailer-server/internal/observability"

	"github.com/google/uuid"
)

// FileStore keeps blobs as flat files under a configured directory. Keys are
// `{uuid}.{ext}`; stored blobs are never rewritten.
type FileStore struct {
	dir    string
	logger *observability.Logger
}

// NewFileStore creates the blob directory if needed and returns a store over it
func NewFileStore(dir string, logger *observability.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// NewKey returns a fresh blob key carrying the given extension (without dot)
func NewKey(ext string) string {
	return fmt.Sprintf("%s.%s", uuid.New().String(), ext)
}

// Put writes a blob under the given key
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, key), data, 0o644); err != nil {
		s.logger.Error(ctx, "failed to write blob", err)
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return nil
}

// Get reads a blob by key
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		s.logger.Error(ctx, "failed to read blob", err)
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// Copy duplicates an existing blob under a fresh key with the same extension
func (s *FileStore) Copy(ctx context.Context, key string) (string, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(key)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	newKey := NewKey(ext)
	if err := s.Put(ctx, newKey, data); err != nil {
		return "", err
	}
	return newKey, nil
}
