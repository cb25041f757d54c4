package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Observer is told whether each lookup was served from the cache.
type Observer interface {
	Hit(op string)
	Miss(op string)
}

// Fetcher puts a Cache in front of load functions. Only successful loads are
// stored.
type Fetcher struct {
	cache    Cache
	group    *singleflight.Group
	observer Observer
}

type FetcherOption func(*Fetcher)

// WithCoalescing makes concurrent misses on one key share a single load.
func WithCoalescing() FetcherOption {
	return func(f *Fetcher) {
		f.group = &singleflight.Group{}
	}
}

func WithObserver(o Observer) FetcherOption {
	return func(f *Fetcher) {
		f.observer = o
	}
}

// NewFetcher wraps c. A nil c bypasses caching and calls load every time.
func NewFetcher(c Cache, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{cache: c}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the fresh value cached under key, or runs load and caches
// its result. op labels the lookup for the Observer.
//
// With coalescing the shared load is detached from ctx: a caller that gives
// up early gets ctx.Err(), but the load still completes and fills the cache.
func Fetch[V any](ctx context.Context, f *Fetcher, op, key string, load func(context.Context) (V, error)) (V, error) {
	var zero V

	if f.cache == nil {
		return load(ctx)
	}

	if v, ok := f.cache.Get(ctx, key); ok {
		if typed, ok := v.(V); ok {
			f.hit(op)
			return typed, nil
		}
	}
	f.miss(op)

	if f.group == nil {
		v, err := load(ctx)
		if err != nil {
			return zero, err
		}
		f.cache.Set(ctx, key, v)
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (any, error) {
		v, err := load(detached)
		if err != nil {
			return nil, err
		}
		f.cache.Set(detached, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		typed, ok := res.Val.(V)
		if !ok {
			return zero, fmt.Errorf("cache: key %q holds %T, want %T", key, res.Val, zero)
		}
		return typed, nil
	}
}

func (f *Fetcher) hit(op string) {
	if f.observer != nil {
		f.observer.Hit(op)
	}
}

func (f *Fetcher) miss(op string) {
	if f.observer != nil {
		f.observer.Miss(op)
	}
}
