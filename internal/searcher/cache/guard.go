package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/resilience"
)

type guardedStore struct {
	store Store
	cb    *resilience.CircuitBreaker
}

// Guard routes every call to store through cb, so a Redis outage costs
// one failed call per reset window instead of one per query.
func Guard(store Store, cb *resilience.CircuitBreaker) Store {
	return &guardedStore{store: store, cb: cb}
}

func (g *guardedStore) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	err = g.cb.Execute(func() error {
		var getErr error
		data, ok, getErr = g.store.Get(ctx, key)
		return getErr
	})
	return data, ok, err
}

func (g *guardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.cb.Execute(func() error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (deleted int64, err error) {
	err = g.cb.Execute(func() error {
		var flushErr error
		deleted, flushErr = g.store.FlushByPattern(ctx, pattern)
		return flushErr
	})
	return deleted, err
}
