// README: Availability pool backed by Redis sets and Lua scripts.
package availability

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/types"
)

const (
	idleKey    = "availability:idle"
	engagedKey = "availability:engaged"
	onlineKey  = "availability:online"
)

// Scripts run atomically on the server. KEYS are always idle, engaged, online.
var (
	// reserveScript is a test-and-set: only the caller whose SREM removed the
	// member gets 1 back.
	reserveScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('SADD', KEYS[2], ARGV[1])
	return 1
end
return 0
`)

	// releaseScript puts the driver back only while they are online, so a
	// driver who went offline mid-ride is not offered new rides.
	releaseScript = redis.NewScript(`
redis.call('SREM', KEYS[2], ARGV[1])
if redis.call('SISMEMBER', KEYS[3], ARGV[1]) == 1 then
	redis.call('SADD', KEYS[1], ARGV[1])
end
return 1
`)

	engageScript = redis.NewScript(`
redis.call('SREM', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

	// joinScript marks the driver online and idle unless they are engaged.
	joinScript = redis.NewScript(`
redis.call('SADD', KEYS[3], ARGV[1])
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 then
	redis.call('SADD', KEYS[1], ARGV[1])
end
return 1
`)
)

var poolKeys = []string{idleKey, engagedKey, onlineKey}

type RedisPool struct {
	redis *redis.Client
}

func NewRedisPool(client *redis.Client) *RedisPool {
	return &RedisPool{redis: client}
}

func (p *RedisPool) Candidates(ctx context.Context) ([]types.ID, error) {
	members, err := p.redis.SMembers(ctx, idleKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

func (p *RedisPool) Reserve(ctx context.Context, id types.ID) (bool, error) {
	n, err := reserveScript.Run(ctx, p.redis, poolKeys, string(id)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *RedisPool) Release(ctx context.Context, id types.ID) error {
	return releaseScript.Run(ctx, p.redis, poolKeys, string(id)).Err()
}

func (p *RedisPool) Join(ctx context.Context, id types.ID) error {
	return joinScript.Run(ctx, p.redis, poolKeys, string(id)).Err()
}

func (p *RedisPool) Leave(ctx context.Context, id types.ID) error {
	pipe := p.redis.TxPipeline()
	pipe.SRem(ctx, onlineKey, string(id))
	pipe.SRem(ctx, idleKey, string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPool) Engage(ctx context.Context, id types.ID) error {
	return engageScript.Run(ctx, p.redis, poolKeys, string(id)).Err()
}
