package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
)

// Timeout 限制单个请求的处理时长。
// 超时后由 http.TimeoutHandler 以503返回统一信封，处理器的上下文同步取消。
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(&resp.Response{Code: resp.CodeTimeout, Message: "request timeout"})
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, string(body))
	}
}
