// Package storage keeps uploaded payloads outside the database. Submission rows
// only hold the key ("artifact ref") returned here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/jmehdipour/clipgate/internal/config"
	"go.uber.org/zap"
)

var (
	ErrInvalidKey  = errors.New("invalid storage key")
	ErrUnavailable = errors.New("storage unavailable")
)

// Store is an artifact store.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	c := path.Clean(key)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidKey
	}
	return c, nil
}

// New builds the configured store, wrapped with a circuit breaker.
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Store, error) {
	var (
		inner Store
		err   error
	)
	switch cfg.Driver {
	case "", "local":
		inner, err = NewLocalStore(cfg.BaseDir)
	case "s3":
		var s3s *S3Store
		s3s, err = NewS3Store(cfg, WithLogger(log))
		if err == nil {
			err = s3s.EnsureBucket(ctx)
		}
		inner = s3s
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return NewGuarded(inner, NewBreaker(cfg.Breaker.FailThreshold, msDuration(cfg.Breaker.OpenForMs))), nil
}
