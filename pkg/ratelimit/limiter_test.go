package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time          { return f.t }
func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTokenBucket(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	tb := NewTokenBucket(5, time.Second)
	tb.now = clock.now
	tb.lastRefill = clock.t

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow())

	clock.advance(time.Second)
	assert.True(t, tb.Allow())

	tb.tokens = 0
	tb.Reset()
	assert.Equal(t, tb.capacity, tb.tokens)
}

func TestSlidingWindow(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	sw := NewSlidingWindow(3, time.Minute)
	sw.now = clock.now

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow())

	clock.advance(30 * time.Second)
	assert.False(t, sw.Allow())

	clock.advance(30 * time.Second)
	assert.True(t, sw.Allow())

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestWaitHonoursContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sw.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReturnsWhenAllowed(t *testing.T) {
	tb := NewTokenBucket(2, time.Hour)
	assert.NoError(t, tb.Wait(context.Background()))
	assert.NoError(t, tb.Wait(context.Background()))
}

func TestPerMinute(t *testing.T) {
	assert.IsType(t, Unlimited{}, PerMinute(StrategyTokenBucket, 0))
	assert.IsType(t, &SlidingWindow{}, PerMinute(StrategySlidingWindow, 60))
	assert.IsType(t, &SlidingWindow{}, PerMinute("", 60))

	tb, ok := PerMinute(StrategyTokenBucket, 2).(*TokenBucket)
	require.True(t, ok)
	assert.Equal(t, 2, tb.capacity)
	assert.Equal(t, time.Minute, tb.refillPeriod)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	u := Unlimited{}
	assert.True(t, u.Allow())
	assert.NoError(t, u.Wait(context.Background()))
}
