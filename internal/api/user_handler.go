package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/middleware"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
)

// UserHandler 处理用户注册、登录与令牌刷新
type UserHandler struct {
	userService service.UserService
	jwtService  service.JWTService
	logger      *zap.Logger
}

// NewUserHandler 创建用户处理器
func NewUserHandler(userService service.UserService, jwtService service.JWTService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// loginResponse 组装用户信息与令牌对
func (h *UserHandler) loginResponse(user *domain.User) (*domain.LoginResponse, error) {
	pair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	user, err := h.userService.Register(&req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "register", err)
		return
	}

	// 注册成功直接发放令牌，免去一次登录往返
	result, err := h.loginResponse(user)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "register", err)
		return
	}

	resp.Created(w, result, reqID, "")
}

// Login 用户登录，用户名或邮箱均可
// POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	user, err := h.userService.Login(&req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "login", err)
		return
	}

	result, err := h.loginResponse(user)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "login", err)
		return
	}

	resp.OK(w, result, reqID, "")
}

// RefreshToken 用刷新令牌换取新的令牌对
// POST /api/v1/auth/refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid refresh token", reqID, "")
		return
	}

	// 重新加载用户，保证角色变更立即生效
	user, err := h.userService.GetByID(claims.UserID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "refresh token", err)
		return
	}

	result, err := h.loginResponse(user)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "refresh token", err)
		return
	}

	resp.OK(w, result, reqID, "")
}

// Me 返回当前登录用户信息
// GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "unauthorized", reqID, "")
		return
	}

	resp.OK(w, user, reqID, "")
}
