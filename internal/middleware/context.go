// Package middleware 提供 HTTP 中间件：请求 ID、恢复、超时、CORS、
// 访问日志、认证与幂等控制。
package middleware

import (
	"context"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// contextKey 用于在上下文中存取特定键，避免与外部键冲突。
type contextKey string

// 约定的上下文键集合。
const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyUser      contextKey = "user"
)

// withRequestID 将请求 ID 写入上下文。
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext 从上下文中读取请求 ID（可能为空）。
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// withUser 将认证用户写入上下文。
func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

// UserFromContext 从上下文中读取认证用户（未认证时为 nil）。
func UserFromContext(ctx context.Context) *domain.User {
	if v := ctx.Value(contextKeyUser); v != nil {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}
