package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rds.Close() })
	return NewStore(rds, ttl), mr
}

func TestCreateValidDrop(t *testing.T) {
	s, _ := newStore(t, time.Hour)
	ctx := context.Background()

	token, err := s.Create(ctx)
	require.NoError(t, err)
	assert.Len(t, token, 43)

	ok, err := s.Valid(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Drop(ctx, token))
	ok, err = s.Valid(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokensAreDistinct(t *testing.T) {
	s, _ := newStore(t, time.Hour)
	a, err := s.Create(context.Background())
	require.NoError(t, err)
	b, err := s.Create(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestExpiry(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	token, err := s.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(50 * time.Second)
	ok, err := s.Valid(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	// Valid slid the expiry forward.
	mr.FastForward(50 * time.Second)
	ok, err = s.Valid(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = s.Valid(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownAndEmptyToken(t *testing.T) {
	s, _ := newStore(t, 0)
	assert.Equal(t, DefaultTTL, s.TTL())

	ok, err := s.Valid(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Valid(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Drop(context.Background(), ""))
}
