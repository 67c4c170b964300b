package ratelimit

import (
	"context"
	"time"
)

// Store is the counter backend for token buckets. Implementations must
// make Take atomic: refill-and-consume happens as one operation, never
// as a read followed by a write.
type Store interface {
	// Take refills the bucket identified by key up to capacity at
	// refillPerSec and attempts to consume cost tokens. It returns
	// whether the take succeeded, the tokens remaining afterwards, and
	// (when rejected) how long until cost tokens will be available.
	Take(ctx context.Context, key string, capacity int, refillPerSec float64, cost int) (ok bool, remaining float64, wait time.Duration, err error)

	// Give returns cost tokens to the bucket, used to refund an earlier
	// Take when a later window in the same decision rejects.
	Give(ctx context.Context, key string, capacity int, refillPerSec float64, cost int) error
}

// Decision is the outcome of a consume attempt across all windows.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}
