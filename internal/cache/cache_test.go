package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
)

type record struct {
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

func counting(calls *int32, v record, err error) func(context.Context) (record, error) {
	return func(context.Context) (record, error) {
		atomic.AddInt32(calls, 1)
		return v, err
	}
}

func TestGetOrComputeServesHitsUntilExpiry(t *testing.T) {
	mem := NewMemory(16, time.Hour)
	now := time.Now()
	mem.now = func() time.Time { return now }
	c := New[record]("test", mem)
	ctx := context.Background()

	var calls int32
	compute := counting(&calls, record{Name: "Certificate", Verified: true}, nil)

	v, err := c.GetOrCompute(ctx, "coursera_abc", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "Certificate", v.Name)

	v, err = c.GetOrCompute(ctx, "coursera_abc", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	now = now.Add(time.Minute)
	_, err = c.GetOrCompute(ctx, "coursera_abc", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "expired entry is recomputed")
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New[record]("test", NewMemory(16, time.Hour))
	ctx := context.Background()
	boom := errors.New("upstream down")

	var calls int32
	_, err := c.GetOrCompute(ctx, "k", time.Hour, counting(&calls, record{}, boom))
	assert.ErrorIs(t, err, boom)

	v, err := c.GetOrCompute(ctx, "k", time.Hour, counting(&calls, record{Name: "ok"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", v.Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New[[]string]("test", NewMemory(16, time.Hour))
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"Go"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(ctx, "esco_go", time.Hour, compute)
			assert.NoError(t, err)
			assert.Equal(t, []string{"Go"}, v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err := c.GetOrCompute(ctx, "esco_go", time.Hour, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "later calls are hits")
}

func TestGetOrComputeIgnoresFirstCallerCancellation(t *testing.T) {
	c := New[[]string]("test", NewMemory(16, time.Hour))
	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]string, error) {
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return []string{"Kubernetes"}, nil
		}
	}

	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(leaderCtx, "esco_kube", time.Hour, compute)
		leaderDone <- err
	}()
	<-started

	followerDone := make(chan []string, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), "esco_kube", time.Hour, compute)
		assert.NoError(t, err)
		followerDone <- v
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, []string{"Kubernetes"}, <-followerDone)
	assert.NoError(t, <-leaderDone)
}

func TestMemoryBoundedSize(t *testing.T) {
	mem := NewMemory(2, time.Hour)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, mem.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, mem.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, mem.Len())
	_, ok, _ := mem.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

func TestBackendErrorsDegradeToCompute(t *testing.T) {
	c := New[record]("test", failingBackend{})
	var calls int32
	v, err := c.GetOrCompute(context.Background(), "k", time.Hour, counting(&calls, record{Name: "fresh"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "fresh", v.Name)
}

func TestRedisBackedCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rs := store.NewRedisStoreFromClient(client)

	// Two caches over one Redis model two server processes.
	first := New[record]("cert", rs.Cache("cert:"))
	second := New[record]("cert", rs.Cache("cert:"))
	ctx := context.Background()

	var calls int32
	_, err := first.GetOrCompute(ctx, "coursera_x", time.Hour, counting(&calls, record{Name: "Certificate"}, nil))
	require.NoError(t, err)
	v, err := second.GetOrCompute(ctx, "coursera_x", time.Hour, counting(&calls, record{Name: "other"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "Certificate", v.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
