package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID 请求ID透传头
const HeaderRequestID = "X-Request-ID"

// RequestID 保证每个请求带有请求ID。
// 优先沿用调用方传入的 X-Request-ID，缺失时生成UUID，
// 并写回响应头与请求上下文供日志和错误响应引用。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), rid)))
	})
}
