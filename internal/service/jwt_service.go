package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// JWT相关错误定义
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims 定义JWT载荷结构
type Claims struct {
	UserID   int64           `json:"user_id"`
	Username string          `json:"username"`
	Role     domain.UserRole `json:"role"`
	Type     string          `json:"type"` // access 或 refresh
	jwt.RegisteredClaims
}

// TokenPair 表示访问令牌和刷新令牌对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// JWTService 定义JWT服务接口
type JWTService interface {
	GenerateTokenPair(user *domain.User) (*TokenPair, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// jwtService 是JWTService接口的实现
type jwtService struct {
	secret []byte
	issuer string
	jwtCfg config.JWTConfig
}

// NewJWTService 创建JWT服务实例
func NewJWTService(cfg *config.Config) JWTService {
	return &jwtService{
		secret: []byte(cfg.JWT.Secret),
		issuer: cfg.App.Name,
		jwtCfg: cfg.JWT,
	}
}

// sign 生成指定类型和有效期的令牌
func (s *jwtService) sign(user *domain.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return token, nil
}

// GenerateTokenPair 为用户生成访问令牌和刷新令牌对
func (s *jwtService) GenerateTokenPair(user *domain.User) (*TokenPair, error) {
	access, err := s.sign(user, "access", s.jwtCfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, "refresh", s.jwtCfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// validate 解析并校验令牌，同时核对令牌类型
func (s *jwtService) validate(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ValidateAccessToken 校验访问令牌
func (s *jwtService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, "access")
}

// ValidateRefreshToken 校验刷新令牌
func (s *jwtService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, "refresh")
}
