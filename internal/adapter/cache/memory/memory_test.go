package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/linkcache/internal/entity"
)

func TestCache_GetSet(t *testing.T) {
	c := New(50*time.Millisecond, time.Minute)

	_, err := c.Get(context.Background(), "abc123")
	assert.ErrorIs(t, err, entity.ErrCacheMiss)

	require.NoError(t, c.Set(context.Background(), "abc123", "https://example.com"))

	v, err := c.Get(context.Background(), "abc123")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com", v)

	assert.Eventually(t, func() bool {
		_, err := c.Get(context.Background(), "abc123")
		return err == entity.ErrCacheMiss
	}, time.Second, 10*time.Millisecond)
}

func TestCache_Pending(t *testing.T) {
	c := New(time.Minute, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.IncrPending(context.Background(), "abc123")
		}()
	}
	wg.Wait()

	_, err := c.IncrPending(context.Background(), "def456")
	require.NoError(t, err)

	pending, err := c.ScanPending(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []entity.PendingClicks{
		{ShortCode: "abc123", Count: 100},
		{ShortCode: "def456", Count: 1},
	}, pending)

	require.NoError(t, c.SettlePending(context.Background(), "abc123", 60))
	require.NoError(t, c.SettlePending(context.Background(), "def456", 1))

	pending, err = c.ScanPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entity.PendingClicks{{ShortCode: "abc123", Count: 40}}, pending)

	require.NoError(t, c.SettlePending(context.Background(), "abc123", 40))

	pending, err = c.ScanPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCache_PendingDoesNotExpire(t *testing.T) {
	c := New(10*time.Millisecond, 10*time.Millisecond)

	_, err := c.IncrPending(context.Background(), "abc123")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	pending, err := c.ScanPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entity.PendingClicks{{ShortCode: "abc123", Count: 1}}, pending)
}
