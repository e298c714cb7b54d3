package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"git-gauge/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(4)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, id))
	}
	n, _ := q.Len(ctx)
	assert.Equal(t, 3, n)

	for _, want := range []string{"a", "b", "c"} {
		got, ok, err := q.Dequeue(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestQueue_Full(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1)

	require.NoError(t, q.Enqueue(ctx, "a"))
	err := q.Enqueue(ctx, "b")
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeInternal, common.CodeOf(err))
}

func TestQueue_DequeueTimeout(t *testing.T) {
	q := NewQueue(0)

	start := time.Now()
	id, ok, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueue_DequeueCanceled(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := q.Dequeue(ctx, time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Enqueue(ctx, "job")
		}()
	}
	wg.Wait()

	n, _ := q.Len(ctx)
	assert.Equal(t, 50, n)
}

func TestCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "job_status:1", "queued", time.Minute))
	require.NoError(t, c.Set(ctx, "forever", "x", 0))

	v, ok, err := c.Get(ctx, "job_status:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "queued", v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "job_status:1")
	assert.False(t, ok)

	v, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok, _ = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestCache_ExpiredGetKeepsConcurrentSet(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	require.NoError(t, c.Set(ctx, "job_status:1", "queued", time.Minute))

	// Get 判断过期时正好有一次 Set 写入新值
	later := base.Add(2 * time.Minute)
	raced := false
	c.now = func() time.Time {
		if !raced {
			raced = true
			require.NoError(t, c.Set(ctx, "job_status:1", "running", time.Hour))
		}
		return later
	}

	_, ok, err := c.Get(ctx, "job_status:1")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := c.Get(ctx, "job_status:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "running", v)
}
