package tracking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/jobclock/tracking"
)

func TestKeyedLocks_SameKeySerializes(t *testing.T) {
	locks := tracking.NewKeyedLocks()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, tracking.JobLock("j"))
			require.NoError(t, err)
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.Len())
}

func TestKeyedLocks_DuplicatesAndOrder(t *testing.T) {
	locks := tracking.NewKeyedLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx,
		tracking.InventoryLock("w", "b"),
		tracking.JobLock("j"),
		tracking.InventoryLock("w", "a"),
		tracking.InventoryLock("w", "b"),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, locks.Len())
	release()
	assert.Equal(t, 0, locks.Len())
}

func TestKeyedLocks_ContextCancelReleasesPartial(t *testing.T) {
	locks := tracking.NewKeyedLocks()

	hold, err := locks.Acquire(context.Background(), tracking.JobLock("b"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// "a" is taken first (sorted), then "b" blocks until the deadline.
	_, err = locks.Acquire(ctx, tracking.JobLock("a"), tracking.JobLock("b"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// "a" was released again
	again, err := locks.Acquire(context.Background(), tracking.JobLock("a"))
	require.NoError(t, err)
	again()
	hold()
	assert.Equal(t, 0, locks.Len())
}
