package availability

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/types"
)

// poolFactories runs every contract test against each implementation. The
// Redis one is skipped unless ARK_REDIS_ADDR is set.
func poolFactories(t *testing.T) map[string]func(t *testing.T) Pool {
	return map[string]func(t *testing.T) Pool{
		"memory": func(t *testing.T) Pool { return NewMemoryPool() },
		"redis":  newTestRedisPool,
	}
}

func newTestRedisPool(t *testing.T) Pool {
	t.Helper()
	addr := os.Getenv("ARK_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARK_REDIS_ADDR not set; skipping redis pool test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Del(context.Background(), poolKeys...).Err())
	return NewRedisPool(rdb)
}

func TestPool_ReserveIsExclusive(t *testing.T) {
	for name, factory := range poolFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pool := factory(t)
			require.NoError(t, pool.Join(ctx, "z"))

			const attempts = 16
			var wins atomic.Int32
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					ok, err := pool.Reserve(ctx, "z")
					if err == nil && ok {
						wins.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
			ids, err := pool.Candidates(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	for name, factory := range poolFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pool := factory(t)
			require.NoError(t, pool.Join(ctx, "a"))
			require.NoError(t, pool.Join(ctx, "b"))

			ok, err := pool.Reserve(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, pool.Release(ctx, "a"))
			once, err := pool.Candidates(ctx)
			require.NoError(t, err)

			require.NoError(t, pool.Release(ctx, "a"))
			twice, err := pool.Candidates(ctx)
			require.NoError(t, err)

			assert.Equal(t, []types.ID{"a", "b"}, once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestPool_OfflineDriverIsNotReleasedBack(t *testing.T) {
	for name, factory := range poolFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pool := factory(t)
			require.NoError(t, pool.Join(ctx, "a"))

			ok, err := pool.Reserve(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, pool.Leave(ctx, "a"))
			require.NoError(t, pool.Release(ctx, "a"))

			ids, err := pool.Candidates(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestPool_JoinWhileEngagedStaysEngaged(t *testing.T) {
	for name, factory := range poolFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pool := factory(t)
			require.NoError(t, pool.Join(ctx, "a"))
			ok, err := pool.Reserve(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)

			// the app re-announces "online" while the driver is on a ride
			require.NoError(t, pool.Join(ctx, "a"))
			ids, err := pool.Candidates(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)

			require.NoError(t, pool.Release(ctx, "a"))
			ids, err = pool.Candidates(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.ID{"a"}, ids)
		})
	}
}

func TestPool_EngageKeepsDriverOutOfCandidates(t *testing.T) {
	for name, factory := range poolFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pool := factory(t)
			require.NoError(t, pool.Join(ctx, "a"))
			require.NoError(t, pool.Engage(ctx, "a"))

			ok, err := pool.Reserve(ctx, "a")
			require.NoError(t, err)
			assert.False(t, ok)

			// a fresh pool after a restart: engaged before joining
			require.NoError(t, pool.Engage(ctx, "b"))
			require.NoError(t, pool.Join(ctx, "b"))
			ids, err := pool.Candidates(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)

			require.NoError(t, pool.Release(ctx, "b"))
			ids, err = pool.Candidates(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.ID{"b"}, ids)
		})
	}
}

func TestPool_ConcurrentReservationsOverManyDrivers(t *testing.T) {
	for name, factory := range poolFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pool := factory(t)
			const drivers = 5
			for i := 0; i < drivers; i++ {
				require.NoError(t, pool.Join(ctx, types.ID(fmt.Sprintf("d%d", i))))
			}

			var mu sync.Mutex
			got := map[types.ID]int{}
			var wg sync.WaitGroup
			for w := 0; w < 20; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < drivers; i++ {
						id := types.ID(fmt.Sprintf("d%d", i))
						if ok, err := pool.Reserve(ctx, id); err == nil && ok {
							mu.Lock()
							got[id]++
							mu.Unlock()
							return
						}
					}
				}()
			}
			wg.Wait()

			assert.Len(t, got, drivers)
			for id, n := range got {
				assert.Equal(t, 1, n, "driver %s reserved more than once", id)
			}
		})
	}
}
