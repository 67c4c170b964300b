package ratelimit

import (
	"github.com/xbrldata/keygate/internal/storage"
)

// NewStore selects the counter backend. Redis is the shared-store
// default; "memory" exists for single-node runs and tests.
func NewStore(backend string, redis *storage.RedisClient) Store {
	switch backend {
	case "memory":
		return NewMemoryStore(nil)
	default:
		return NewRedisStore(redis)
	}
}
