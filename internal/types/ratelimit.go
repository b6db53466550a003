package types

import (
	"context"

	"market-data-gateway/internal/ratelimit"
)

// RateLimiter is the quota gate consulted by provider variants before every
// upstream call. TryAcquire is the request-path entry point; Wait is reserved
// for background jobs that can afford to block.
type RateLimiter interface {
	TryAcquire() bool
	Wait(ctx context.Context) error
	Status() ratelimit.Status
}
