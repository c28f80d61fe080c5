package lock

import (
	"context"
	"time"

	"jan-server/services/session-api/internal/domain/conversation"
)

// Bounded caps how long Lock may wait before giving up.
type Bounded struct {
	inner conversation.Locker
	wait  time.Duration
}

func NewBounded(inner conversation.Locker, wait time.Duration) *Bounded {
	return &Bounded{inner: inner, wait: wait}
}

func (b *Bounded) Lock(ctx context.Context, key string) (func(), error) {
	if b.wait <= 0 {
		return b.inner.Lock(ctx, key)
	}
	waitCtx, cancel := context.WithTimeout(ctx, b.wait)
	defer cancel()
	return b.inner.Lock(waitCtx, key)
}
