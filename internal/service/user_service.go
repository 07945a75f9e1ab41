package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
)

// UserService 定义用户服务接口
type UserService interface {
	Register(req *domain.RegisterRequest) (*domain.User, error)
	Login(req *domain.LoginRequest) (*domain.User, error)
	GetByID(id int64) (*domain.User, error)
}

// userService 是 UserService 接口的实现
type userService struct {
	userRepo repo.UserRepository
	logger   *zap.Logger
}

// NewUserService 创建用户服务实例
func NewUserService(userRepo repo.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Register 用户注册。用户名与邮箱均不可重复，密码做bcrypt哈希，
// 新用户默认为买家角色。
func (s *userService) Register(req *domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))

	if len(username) < 3 {
		return nil, errs.Validationf("username must be at least 3 characters")
	}
	if !strings.Contains(email, "@") {
		return nil, errs.Validationf("invalid email address")
	}
	if len(req.Password) < 6 {
		return nil, errs.Validationf("password must be at least 6 characters")
	}

	existing, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing == nil {
		existing, err = s.userRepo.GetByEmail(email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
	}
	if existing != nil {
		return nil, errs.Validationf("username or email already taken")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         domain.UserRoleCustomer,
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errs.IsDuplicateKey(err) {
			return nil, errs.Validationf("username or email already taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return user, nil
}

// Login 用户登录，支持用户名或邮箱。
// 凭证错误与用户不存在返回同一个错误，不泄露账号是否存在。
func (s *userService) Login(req *domain.LoginRequest) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(req.Username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		user, err = s.userRepo.GetByEmail(strings.ToLower(req.Username))
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
	}
	if user == nil || !user.IsActive {
		return nil, errs.Validationf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errs.Validationf("invalid credentials")
	}

	return user, nil
}

// GetByID 根据ID查询用户
func (s *userService) GetByID(id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.NotFoundf("user %d", id)
	}
	return user, nil
}
