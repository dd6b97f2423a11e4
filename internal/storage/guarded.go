package storage

import (
	"context"
	"errors"
	"io"
)

// Guarded fails uploads fast while the backing store keeps erroring.
// Deletes always pass through: they compensate for rejected submissions.
type Guarded struct {
	inner Store
	br    *Breaker
}

var _ Store = (*Guarded)(nil)

func NewGuarded(inner Store, br *Breaker) *Guarded {
	return &Guarded{inner: inner, br: br}
}

func (g *Guarded) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if !g.br.TryAcquire() {
		return ErrUnavailable
	}
	err := g.inner.Put(ctx, key, body, size, contentType)
	// a bad key or a caller giving up says nothing about backend health
	switch {
	case err == nil:
		g.br.OnSuccess()
	case errors.Is(err, ErrInvalidKey), errors.Is(err, context.Canceled):
		g.br.Release()
	default:
		g.br.OnFailure()
	}
	return err
}

func (g *Guarded) Delete(ctx context.Context, key string) error { return g.inner.Delete(ctx, key) }

func (g *Guarded) Exists(ctx context.Context, key string) (bool, error) {
	return g.inner.Exists(ctx, key)
}
