package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
)

func TestMemoryFiftyPerHour(t *testing.T) {
	l := NewMemory(50, time.Hour)
	ctx := context.Background()
	start := time.Now()

	for i := 0; i < 50; i++ {
		ok, err := l.Allow(ctx, "messages:a", start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.True(t, ok, "attempt %d should be allowed", i+1)
	}

	ok, err := l.Allow(ctx, "messages:a", start.Add(59*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "51st attempt within the hour is rejected")

	ok, _ = l.Allow(ctx, "messages:b", start.Add(59*time.Minute))
	assert.True(t, ok, "other senders are unaffected")

	ok, _ = l.Allow(ctx, "messages:a", start.Add(time.Hour+500*time.Millisecond))
	assert.True(t, ok, "oldest attempt has left the window")
}

func TestMemoryRejectionRecordsNothing(t *testing.T) {
	l := NewMemory(1, time.Minute)
	ctx := context.Background()
	start := time.Now()

	ok, _ := l.Allow(ctx, "k", start)
	require.True(t, ok)
	for i := 1; i <= 10; i++ {
		ok, _ = l.Allow(ctx, "k", start.Add(time.Duration(i)*time.Second))
		assert.False(t, ok)
	}

	// Only the first attempt counted, so the key frees up one window after it.
	ok, _ = l.Allow(ctx, "k", start.Add(time.Minute+time.Millisecond))
	assert.True(t, ok)
}

func TestMemorySweep(t *testing.T) {
	l := NewMemory(5, time.Minute)
	ctx := context.Background()
	start := time.Now()

	l.Allow(ctx, "old", start)
	l.Allow(ctx, "new", start.Add(50*time.Second))
	require.Equal(t, 2, l.Len())

	removed := l.Sweep(start.Add(90 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryConcurrentAllow(t *testing.T) {
	l := NewMemory(50, time.Hour)
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(ctx, "k", now); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *store.RedisStore {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { c.Close() })
		return store.NewRedisStoreFromClient(c)
	}

	// Two limiters over separate connections model two server processes.
	a := NewShared(newClient(), 3, time.Hour)
	b := NewShared(newClient(), 3, time.Hour)
	ctx := context.Background()
	now := time.Now()

	for i, l := range []Limiter{a, b, a} {
		ok, err := l.Allow(ctx, "messages:x", now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := b.Allow(ctx, "messages:x", now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
}
