package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
)

// Auth JWT认证中间件。
// 校验 Authorization: Bearer 令牌并把用户信息注入请求上下文。
func Auth(jwtService service.JWTService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authorization header required", reqID, "")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				logger.Warn("token validation failed",
					zap.String("request_id", reqID),
					zap.Error(err),
				)
				msg := "invalid token"
				if err == service.ErrTokenExpired {
					msg = "token expired"
				}
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, msg, reqID, "")
				return
			}

			user := &domain.User{
				ID:       claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
				IsActive: true,
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireRoles 角色授权中间件，用户须具备任一给定角色
func RequireRoles(logger *zap.Logger, roles ...domain.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())
			user := UserFromContext(r.Context())
			if user == nil {
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("insufficient permissions",
				zap.String("request_id", reqID),
				zap.Int64("user_id", user.ID),
				zap.String("user_role", string(user.Role)),
			)
			resp.Error(w, http.StatusForbidden, resp.CodeForbidden, "insufficient permissions", reqID, "")
		})
	}
}

// RequireAdmin 要求管理员角色
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRoles(logger, domain.UserRoleAdmin)
}

// RequireStaff 要求管理员或商家角色
func RequireStaff(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRoles(logger, domain.UserRoleAdmin, domain.UserRoleVendor)
}
