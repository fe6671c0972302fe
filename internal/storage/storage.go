// Package storage holds the object store backends used for evidence, signatures and reports.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"ordenapp/internal/config"
)

// Store puts blobs under a path and hands out URLs for them
type Store interface {
	Put(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// FromConfig builds the configured backend. awsCfg is only used by the s3 backend.
func FromConfig(cfg config.Storage, awsCfg aws.Config) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	case "s3":
		return NewS3Store(awsCfg, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// cleanObjectPath normalizes a slash separated object path and rejects
// anything that would escape the store root
func cleanObjectPath(objectPath string) (string, error) {
	p := path.Clean("/" + strings.TrimSpace(objectPath))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("empty object path")
	}
	if strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return p, nil
}
