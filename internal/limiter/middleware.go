package limiter

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/middleware"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
)

// clientKey 按客户端IP生成限流键
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware 按客户端IP限流。限流器故障时放行，不阻断正常流量。
func Middleware(l Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				reqID := middleware.RequestIDFromContext(r.Context())
				resp.Error(w, http.StatusTooManyRequests, resp.CodeConflict, "rate limit exceeded", reqID, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
