package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// ImportRepository 定义商品导入批次的数据访问接口
type ImportRepository interface {
	Create(imp *domain.ProductImport) error
	GetByID(id int64) (*domain.ProductImport, error)
	UpdateStatus(id int64, status domain.ImportStatus) error
	// Finish 写入导入结果计数与逐行错误
	Finish(id int64, status domain.ImportStatus, imported, failed int, rowErrors []domain.ImportRowError) error
}

// importRepo 是 ImportRepository 接口的数据库实现
type importRepo struct {
	db *database.DB
}

// NewImportRepository 创建导入批次仓储实例
func NewImportRepository(db *database.DB) ImportRepository {
	return &importRepo{db: db}
}

// Create 创建导入批次并回填自增ID
func (r *importRepo) Create(imp *domain.ProductImport) error {
	query := `
		INSERT INTO product_imports (user_id, file_path, status)
		VALUES (?, ?, ?)
	`

	result, err := r.db.Exec(query, imp.UserID, imp.FilePath, string(imp.Status))
	if err != nil {
		return fmt.Errorf("create product import: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	imp.ID = id
	return nil
}

// GetByID 根据ID查询导入批次；不存在时返回 nil
func (r *importRepo) GetByID(id int64) (*domain.ProductImport, error) {
	query := `
		SELECT id, user_id, file_path, status, imported, failed, errors, created_at, updated_at
		FROM product_imports
		WHERE id = ?
	`

	imp := &domain.ProductImport{}
	var status string
	var errorsJSON []byte
	err := r.db.QueryRow(query, id).Scan(
		&imp.ID,
		&imp.UserID,
		&imp.FilePath,
		&status,
		&imp.Imported,
		&imp.Failed,
		&errorsJSON,
		&imp.CreatedAt,
		&imp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product import by id: %w", err)
	}

	imp.Status = domain.ImportStatus(status)
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &imp.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal import errors: %w", err)
		}
	}
	return imp, nil
}

// UpdateStatus 更新导入批次状态
func (r *importRepo) UpdateStatus(id int64, status domain.ImportStatus) error {
	query := `UPDATE product_imports SET status = ? WHERE id = ?`

	if _, err := r.db.Exec(query, string(status), id); err != nil {
		return fmt.Errorf("update product import status: %w", err)
	}
	return nil
}

// Finish 写入导入结果
func (r *importRepo) Finish(id int64, status domain.ImportStatus, imported, failed int, rowErrors []domain.ImportRowError) error {
	var errorsJSON []byte
	if len(rowErrors) > 0 {
		var err error
		errorsJSON, err = json.Marshal(rowErrors)
		if err != nil {
			return fmt.Errorf("marshal import errors: %w", err)
		}
	}

	query := `UPDATE product_imports SET status = ?, imported = ?, failed = ?, errors = ? WHERE id = ?`

	if _, err := r.db.Exec(query, string(status), imported, failed, errorsJSON, id); err != nil {
		return fmt.Errorf("finish product import: %w", err)
	}
	return nil
}
