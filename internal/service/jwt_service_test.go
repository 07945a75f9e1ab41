package service

import (
	"errors"
	"testing"
	"time"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

func newTestJWTService(accessTTL time.Duration) JWTService {
	cfg := &config.Config{}
	cfg.App.Name = "test"
	cfg.JWT = config.JWTConfig{
		Secret:          "test-secret-key",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: time.Hour,
	}
	return NewJWTService(cfg)
}

func TestJWTServiceRoundTrip(t *testing.T) {
	svc := newTestJWTService(time.Minute)
	user := &domain.User{ID: 42, Username: "alice", Role: domain.UserRoleVendor}

	pair, err := svc.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair() error = %v", err)
	}

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != domain.UserRoleVendor {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := svc.ValidateRefreshToken(pair.RefreshToken); err != nil {
		t.Errorf("ValidateRefreshToken() error = %v", err)
	}
}

func TestJWTServiceWrongTokenType(t *testing.T) {
	svc := newTestJWTService(time.Minute)
	pair, err := svc.GenerateTokenPair(&domain.User{ID: 1, Username: "bob"})
	if err != nil {
		t.Fatalf("GenerateTokenPair() error = %v", err)
	}

	if _, err := svc.ValidateAccessToken(pair.RefreshToken); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("refresh token as access: error = %v, want ErrWrongTokenType", err)
	}
	if _, err := svc.ValidateRefreshToken(pair.AccessToken); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("access token as refresh: error = %v, want ErrWrongTokenType", err)
	}
}

func TestJWTServiceExpired(t *testing.T) {
	svc := newTestJWTService(-time.Minute)
	pair, err := svc.GenerateTokenPair(&domain.User{ID: 1, Username: "bob"})
	if err != nil {
		t.Fatalf("GenerateTokenPair() error = %v", err)
	}

	if _, err := svc.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired token: error = %v, want ErrTokenExpired", err)
	}
}

func TestJWTServiceInvalidToken(t *testing.T) {
	svc := newTestJWTService(time.Minute)

	if _, err := svc.ValidateAccessToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: error = %v, want ErrInvalidToken", err)
	}

	// 别的密钥签出的令牌不可用
	other := newTestJWTService(time.Minute).(*jwtService)
	other.secret = []byte("different-secret")
	token, err := other.sign(&domain.User{ID: 9}, "access", time.Minute)
	if err != nil {
		t.Fatalf("sign() error = %v", err)
	}
	if _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token: error = %v, want ErrInvalidToken", err)
	}
}
