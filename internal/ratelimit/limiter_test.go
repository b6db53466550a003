package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestWindowLimiter_MinuteBound(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 6, 12, 0, 5, 0, time.UTC))
	l := NewWithClock(3, 100, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, l.TryAcquire(), "token %d", i)
	}
	assert.False(t, l.TryAcquire(), "minute window drained")

	clock.Advance(time.Minute)
	assert.True(t, l.TryAcquire(), "minute window refilled")
}

func TestWindowLimiter_DayBoundHoldsAcrossMinutes(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC))
	l := NewWithClock(10, 4, clock.Now)

	granted := 0
	for minute := 0; minute < 3; minute++ {
		for i := 0; i < 10; i++ {
			if l.TryAcquire() {
				granted++
			}
		}
		clock.Advance(time.Minute)
	}
	assert.Equal(t, 4, granted, "day window caps total grants")

	// Midnight UTC refills the day window.
	clock.Advance(12 * time.Hour)
	assert.True(t, l.TryAcquire())
}

func TestWindowLimiter_BothWindowsDecrementTogether(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC))
	l := NewWithClock(2, 2, clock.Now)

	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())

	// Minute refills but the day window stays drained; no token may leak.
	clock.Advance(time.Minute)
	assert.False(t, l.TryAcquire())

	st := l.Status()
	assert.Equal(t, 2, st.MinuteRemaining)
	assert.Equal(t, 0, st.DayRemaining)
}

func TestWindowLimiter_Status(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 6, 12, 0, 30, 0, time.UTC))
	l := NewWithClock(5, 100, clock.Now)

	require.True(t, l.TryAcquire())
	st := l.Status()

	assert.Equal(t, 4, st.MinuteRemaining)
	assert.Equal(t, 5, st.MinuteLimit)
	assert.Equal(t, 30*time.Second, st.MinuteResetIn)
	assert.Equal(t, 99, st.DayRemaining)
	assert.Equal(t, 12*time.Hour-30*time.Second, st.DayResetIn)
}

func TestWindowLimiter_ConcurrentAcquisition(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC))
	l := NewWithClock(50, 1000, clock.Now)

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire() {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), granted, "no token granted twice")
}

func TestWindowLimiter_WaitHonorsCancel(t *testing.T) {
	l := New(0, 1) // day window of one
	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Wait did not observe cancellation in time")
	}
}

func TestWindowLimiter_WaitAcquiresAfterRefill(t *testing.T) {
	l := New(1, 0)
	require.True(t, l.TryAcquire())

	// Acquire becomes possible without a window roll once a competing
	// holder is irrelevant; here we only assert Wait returns promptly when
	// capacity exists.
	l2 := New(5, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l2.Wait(ctx))
}
