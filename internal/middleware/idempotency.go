package middleware

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/cache"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
)

// HeaderIdempotencyKey 客户端幂等键请求头
const HeaderIdempotencyKey = "X-Idempotency-Key"

// Idempotency 写操作幂等中间件。
// 客户端携带幂等键时，同一用户的重复提交在TTL内被拒绝。
// 键只占位不缓存响应体，重复请求返回冲突由客户端查询结果。
func Idempotency(store cache.Cache, ttl time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqID := RequestIDFromContext(r.Context())
			var userID int64
			if user := UserFromContext(r.Context()); user != nil {
				userID = user.ID
			}
			cacheKey := fmt.Sprintf("idem:%d:%s:%s", userID, r.URL.Path, key)

			ok, err := store.SetNX(r.Context(), cacheKey, 1, ttl)
			if err != nil {
				// 幂等存储不可用时放行，不放大故障面
				logger.Warn("idempotency store unavailable",
					zap.String("request_id", reqID),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				resp.Error(w, http.StatusConflict, resp.CodeConflict, "duplicate request", reqID, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
