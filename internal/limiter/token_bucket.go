package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucketLimiter Redis令牌桶限流器。
// 桶状态与判定在Lua脚本内原子完成，多实例共享同一限流视图。
type TokenBucketLimiter struct {
	client redis.Cmdable
	cfg    Config
	script *redis.Script
}

// 令牌桶算法：按流逝时间补充令牌，足额则扣减并放行。
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + math.floor(elapsed * rate / window))

local allowed = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('EXPIRE', key, window * 2)

return {allowed, tokens}
`

// NewTokenBucketLimiter 创建令牌桶限流器
func NewTokenBucketLimiter(client redis.Cmdable, cfg Config) *TokenBucketLimiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "limiter:tb"
	}
	if cfg.WindowSec <= 0 {
		cfg.WindowSec = 1
	}
	return &TokenBucketLimiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow 判定一次请求是否放行
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	redisKey := fmt.Sprintf("%s:%s", l.cfg.KeyPrefix, key)

	values, err := l.script.Run(ctx, l.client, []string{redisKey},
		l.cfg.Burst, l.cfg.Rate, l.cfg.WindowSec, time.Now().Unix()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run token bucket script: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected script result length %d", len(values))
	}

	return &Result{
		Allowed:   values[0] == 1,
		Limit:     l.cfg.Burst,
		Remaining: int(values[1]),
	}, nil
}
