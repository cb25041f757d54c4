package cache

import (
	"context"
)

// Cache is the lookup surface the fetch layer sees. Values are opaque to the
// cache and typed at the call site.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any)
}
