package repo

import (
	"database/sql"
	"fmt"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// UserRepository 定义用户数据访问接口。
// 使用接口可以方便单元测试时进行模拟（mock）。
type UserRepository interface {
	Create(user *domain.User) error
	GetByID(id int64) (*domain.User, error)
	GetByUsername(username string) (*domain.User, error)
	GetByEmail(email string) (*domain.User, error)
}

// userRepo 是 UserRepository 接口的数据库实现
type userRepo struct {
	db *database.DB
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepo{db: db}
}

// Create 创建新用户。密码哈希在服务层完成，这里只负责落库。
func (r *userRepo) Create(user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, is_active)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

const userColumns = `id, username, email, password_hash, role, is_active, created_at, updated_at`

func (r *userRepo) getBy(cond string, arg any) (*domain.User, error) {
	user := &domain.User{}
	var role string
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + cond

	err := r.db.QueryRow(query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.Role = domain.UserRole(role)
	return user, nil
}

// GetByID 根据ID查询用户；不存在时返回 nil
func (r *userRepo) GetByID(id int64) (*domain.User, error) {
	return r.getBy("id = ?", id)
}

// GetByUsername 根据用户名查询用户；不存在时返回 nil
func (r *userRepo) GetByUsername(username string) (*domain.User, error) {
	return r.getBy("username = ?", username)
}

// GetByEmail 根据邮箱查询用户；不存在时返回 nil
func (r *userRepo) GetByEmail(email string) (*domain.User, error) {
	return r.getBy("email = ?", email)
}
