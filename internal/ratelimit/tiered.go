package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/xbrldata/keygate/internal/models"
)

type window struct {
	name     string
	duration time.Duration
}

// The three granularities every credential is throttled at. All must
// have capacity for a request to pass.
var windows = []window{
	{"minute", time.Minute},
	{"hour", time.Hour},
	{"day", 24 * time.Hour},
}

// Tiered throttles each credential with independent minute, hour and
// day token buckets. It carries no per-credential state of its own; all
// counters live in the injected Store.
type Tiered struct {
	store Store
}

func NewTiered(store Store) *Tiered {
	return &Tiered{store: store}
}

// Consume attempts to take cost tokens from every window bucket of the
// credential. If a later window rejects, tokens already taken from
// earlier windows are refunded so a denied request costs nothing.
// Remaining reports the minute-window balance, which is what the rate
// limit response headers expose.
func (t *Tiered) Consume(ctx context.Context, credentialID string, limits models.RateLimits, cost int) (Decision, error) {
	if cost <= 0 {
		cost = 1
	}

	var consumed []takenBucket
	decision := Decision{Allowed: true}

	for _, w := range windows {
		capacity := limitFor(limits, w.name)
		if capacity <= 0 {
			continue // window not limited
		}

		refill := float64(capacity) / w.duration.Seconds()
		key := fmt.Sprintf("%s:%s", credentialID, w.name)

		ok, remaining, wait, err := t.store.Take(ctx, key, capacity, refill, cost)
		if err != nil {
			// Refund before surfacing the backend failure.
			t.refund(ctx, consumed, cost)
			return Decision{}, err
		}

		if w.name == "minute" {
			decision.Remaining = int(remaining)
		}

		if !ok {
			t.refund(ctx, consumed, cost)
			return Decision{
				Allowed:    false,
				Remaining:  0,
				RetryAfter: wait,
			}, nil
		}

		consumed = append(consumed, takenBucket{key: key, capacity: capacity, refill: refill})
	}

	return decision, nil
}

type takenBucket struct {
	key      string
	capacity int
	refill   float64
}

func (t *Tiered) refund(ctx context.Context, consumed []takenBucket, cost int) {
	for _, c := range consumed {
		// Best-effort: a failed refund only makes the limit slightly
		// stricter, never looser.
		_ = t.store.Give(ctx, c.key, c.capacity, c.refill, cost)
	}
}

func limitFor(limits models.RateLimits, name string) int {
	switch name {
	case "minute":
		return limits.PerMinute
	case "hour":
		return limits.PerHour
	case "day":
		return limits.PerDay
	}
	return 0
}
