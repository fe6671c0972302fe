package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes blobs below a directory that the HTTP server exposes under /files
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the root directory when missing
func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if dir == "" {
		dir = "data/files"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{dir: filepath.Clean(dir), baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir returns the root directory
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Put(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	// Write then rename so readers never see a partial file
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to store object: %w", err)
	}

	return s.url(p), nil
}

// SignedURL returns the public URL; local files are served without signatures
func (s *LocalStore) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	p, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(p))); err != nil {
		return "", fmt.Errorf("object %s: %w", p, err)
	}
	return s.url(p), nil
}

func (s *LocalStore) url(p string) string {
	return s.baseURL + "/files/" + p
}
