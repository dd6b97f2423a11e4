// Package session keeps admin sessions in redis. A session is an opaque
// random token; its presence under the prefix is the whole authorization.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 12 * time.Hour
	defaultPrefix = "sess:admin:"
	tokenBytes    = 32
)

type Store struct {
	rds    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(rds *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rds: rds, prefix: defaultPrefix, ttl: ttl}
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Create starts a session and returns its token.
func (s *Store) Create(ctx context.Context) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	if err := s.rds.Set(ctx, s.prefix+token, time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Valid reports whether token names a live session and slides its expiry.
func (s *Store) Valid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	ok, err := s.rds.Expire(ctx, s.prefix+token, s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) Drop(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.rds.Del(ctx, s.prefix+token).Err()
}
