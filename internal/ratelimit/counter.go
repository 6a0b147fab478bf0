// Package ratelimit counts requests per key in fixed windows. The in-process counter fits a
// single instance; the redis counter shares windows across instances.
package ratelimit

import (
	"context"
	"time"
)

// Counter records one hit for key and reports how many hits the current window holds and
// how long until it resets. The first hit opens the window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}
