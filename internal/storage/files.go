// Package storage keeps uploaded payment screenshots on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const MaxFileSize = 5 << 20

var (
	ErrTooLarge        = errors.New("file exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
)

var allowedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// FileStore writes files under a root directory and returns a reference relative to it.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

// StoreFile saves data and returns its reference. The content type is sniffed, not trusted.
func (s *FileStore) StoreFile(ctx context.Context, data []byte) (string, error) {
	if len(data) > MaxFileSize {
		return "", ErrTooLarge
	}
	ext, ok := allowedTypes[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedType
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := filepath.Join("screenshots", uuid.NewString()+ext)
	path := filepath.Join(s.root, ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return filepath.ToSlash(ref), nil
}

// Path resolves a reference returned by StoreFile.
func (s *FileStore) Path(ref string) string {
	return filepath.Join(s.root, filepath.FromSlash(filepath.Clean("/"+ref)))
}
