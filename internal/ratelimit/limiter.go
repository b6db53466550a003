package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Status is a point-in-time read-out of both rate-limit windows.
type Status struct {
	MinuteRemaining int           `json:"minute_remaining"`
	MinuteLimit     int           `json:"minute_limit"`
	MinuteResetIn   time.Duration `json:"minute_reset_in"`
	DayRemaining    int           `json:"day_remaining"`
	DayLimit        int           `json:"day_limit"`
	DayResetIn      time.Duration `json:"day_reset_in"`
}

// WindowLimiter is a token-bucket limiter with two independent windows: one
// refilled at the top of each minute UTC, one at midnight UTC. TryAcquire
// consumes one token from each window or none.
//
// A limit of zero disables that window. Refills are computed lazily from the
// wall clock, so the limiter needs no background goroutine; the minute window
// refreshes before the day window when both reset at the same instant.
type WindowLimiter struct {
	mu sync.Mutex

	minuteLimit int
	dayLimit    int
	minuteUsed  int
	dayUsed     int

	minuteWindow time.Time
	dayWindow    time.Time

	now func() time.Time
	rng *rand.Rand
}

// New creates a limiter with the given per-minute and per-day capacities.
func New(requestsPerMinute, requestsPerDay int) *WindowLimiter {
	return NewWithClock(requestsPerMinute, requestsPerDay, time.Now)
}

// NewWithClock creates a limiter with an injected clock. Used by tests.
func NewWithClock(requestsPerMinute, requestsPerDay int, now func() time.Time) *WindowLimiter {
	return &WindowLimiter{
		minuteLimit: requestsPerMinute,
		dayLimit:    requestsPerDay,
		now:         now,
		rng:         rand.New(rand.NewSource(now().UnixNano())),
	}
}

// refresh rolls the windows forward. Caller holds l.mu. Minute before day on
// simultaneous resets.
func (l *WindowLimiter) refresh(now time.Time) {
	minuteStart := now.UTC().Truncate(time.Minute)
	if !minuteStart.Equal(l.minuteWindow) {
		l.minuteWindow = minuteStart
		l.minuteUsed = 0
	}

	y, m, d := now.UTC().Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if !dayStart.Equal(l.dayWindow) {
		l.dayWindow = dayStart
		l.dayUsed = 0
	}
}

// TryAcquire consumes one token from the minute and day windows, or neither.
// It is linearizable: no two callers observe the same token.
func (l *WindowLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refresh(l.now())

	if l.minuteLimit > 0 && l.minuteUsed >= l.minuteLimit {
		return false
	}
	if l.dayLimit > 0 && l.dayUsed >= l.dayLimit {
		return false
	}

	l.minuteUsed++
	l.dayUsed++
	return true
}

// Wait blocks until a token is acquired or ctx is cancelled. Between attempts
// it sleeps until the nearest window reset plus a small jitter. Intended for
// background jobs; request paths should use TryAcquire and fail fast.
func (l *WindowLimiter) Wait(ctx context.Context) error {
	for {
		if l.TryAcquire() {
			return nil
		}

		sleep := l.nextResetIn() + l.jitter()
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// nextResetIn returns the duration until the nearest exhausted window resets.
func (l *WindowLimiter) nextResetIn() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	l.refresh(now)

	minuteReset := l.minuteWindow.Add(time.Minute).Sub(now)
	dayReset := l.dayWindow.Add(24 * time.Hour).Sub(now)

	if l.dayLimit > 0 && l.dayUsed >= l.dayLimit {
		// Minute tokens are useless while the day window is drained.
		if l.minuteLimit <= 0 || l.minuteUsed < l.minuteLimit {
			return dayReset
		}
		if dayReset < minuteReset {
			return dayReset
		}
	}
	return minuteReset
}

func (l *WindowLimiter) jitter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Duration(l.rng.Int63n(int64(50 * time.Millisecond)))
}

// Status returns the remaining capacity and reset horizon of both windows.
func (l *WindowLimiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	l.refresh(now)

	st := Status{
		MinuteLimit:   l.minuteLimit,
		DayLimit:      l.dayLimit,
		MinuteResetIn: l.minuteWindow.Add(time.Minute).Sub(now),
		DayResetIn:    l.dayWindow.Add(24 * time.Hour).Sub(now),
	}
	if l.minuteLimit > 0 {
		st.MinuteRemaining = l.minuteLimit - l.minuteUsed
	}
	if l.dayLimit > 0 {
		st.DayRemaining = l.dayLimit - l.dayUsed
	}
	return st
}
