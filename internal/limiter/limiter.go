// Package limiter 提供基于Redis的令牌桶限流与对应的HTTP中间件。
package limiter

import "context"

// Result 单次限流判定结果
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
}

// Limiter 限流器接口
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Config 限流配置
type Config struct {
	Rate      int    // 每个窗口补充的令牌数
	Burst     int    // 桶容量
	WindowSec int    // 补充窗口，秒
	KeyPrefix string // Redis键前缀
}
