package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// ProductRepository 定义商品数据访问接口
type ProductRepository interface {
	Create(product *domain.Product) error
	// CreateTx 在调用方事务内创建商品，供导入路径将商品与初始库存绑定为一个原子单元
	CreateTx(tx *sql.Tx, product *domain.Product) error
	GetByID(id int64) (*domain.Product, error)
	GetBySKU(sku string) (*domain.Product, error)
	Update(product *domain.Product) error
	// Delete 软删除商品，已删除商品不再进入列表与低库存巡检
	Delete(id int64) error
	List(req *domain.ProductListRequest) ([]*domain.Product, int64, error)

	CreateVariant(variant *domain.ProductVariant) error
	GetVariantByID(id int64) (*domain.ProductVariant, error)
	ListVariants(productID int64) ([]*domain.ProductVariant, error)
}

// productRepo 是 ProductRepository 接口的数据库实现
type productRepo struct {
	db *database.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db *database.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, vendor_id, name, description, sku, base_price, image_path,
	is_active, created_at, updated_at, deleted_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	var description, imagePath sql.NullString
	err := row.Scan(
		&p.ID,
		&p.VendorID,
		&p.Name,
		&description,
		&p.SKU,
		&p.BasePrice,
		&imagePath,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.ImagePath = imagePath.String
	return p, nil
}

const insertProductQuery = `
	INSERT INTO products (vendor_id, name, description, sku, base_price, image_path, is_active)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertProduct(e execer, product *domain.Product) error {
	result, err := e.Exec(insertProductQuery,
		product.VendorID,
		product.Name,
		product.Description,
		product.SKU,
		product.BasePrice,
		product.ImagePath,
		product.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	product.ID = id
	return nil
}

// Create 创建商品并回填自增ID
func (r *productRepo) Create(product *domain.Product) error {
	return insertProduct(r.db, product)
}

// CreateTx 在调用方事务内创建商品
func (r *productRepo) CreateTx(tx *sql.Tx, product *domain.Product) error {
	return insertProduct(tx, product)
}

// GetByID 根据ID查询商品；不存在或已删除时返回 nil
func (r *productRepo) GetByID(id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ? AND deleted_at IS NULL`

	product, err := scanProduct(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// GetBySKU 根据SKU查询商品；不存在或已删除时返回 nil
func (r *productRepo) GetBySKU(sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = ? AND deleted_at IS NULL`

	product, err := scanProduct(r.db.QueryRow(query, sku))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by sku: %w", err)
	}
	return product, nil
}

// Update 更新商品信息
func (r *productRepo) Update(product *domain.Product) error {
	query := `
		UPDATE products
		SET name = ?, description = ?, base_price = ?, image_path = ?, is_active = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	_, err := r.db.Exec(query,
		product.Name,
		product.Description,
		product.BasePrice,
		product.ImagePath,
		product.IsActive,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete 软删除商品
func (r *productRepo) Delete(id int64) error {
	query := `UPDATE products SET deleted_at = NOW() WHERE id = ? AND deleted_at IS NULL`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// List 按过滤条件分页查询商品
func (r *productRepo) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []any

	if req.VendorID != nil {
		conds = append(conds, "vendor_id = ?")
		args = append(args, *req.VendorID)
	}
	if req.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *req.IsActive)
	}
	if req.Keyword != nil && *req.Keyword != "" {
		conds = append(conds, "(name LIKE ? OR sku LIKE ?)")
		like := "%" + *req.Keyword + "%"
		args = append(args, like, like)
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	offset := (req.Page - 1) * req.PageSize
	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, req.PageSize, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	return products, total, nil
}

// CreateVariant 创建商品规格并回填自增ID
func (r *productRepo) CreateVariant(variant *domain.ProductVariant) error {
	query := `
		INSERT INTO product_variants (product_id, name, sku, price, attributes)
		VALUES (?, ?, ?, ?, ?)
	`

	var attrs any
	if len(variant.Attributes) > 0 {
		attrs = []byte(variant.Attributes)
	}

	result, err := r.db.Exec(query,
		variant.ProductID,
		variant.Name,
		variant.SKU,
		variant.Price,
		attrs,
	)
	if err != nil {
		return fmt.Errorf("create product variant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	variant.ID = id
	return nil
}

const variantColumns = `id, product_id, name, sku, price, attributes, created_at, updated_at`

func scanVariant(row interface{ Scan(...any) error }) (*domain.ProductVariant, error) {
	v := &domain.ProductVariant{}
	var attrs []byte
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.Name,
		&v.SKU,
		&v.Price,
		&attrs,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Attributes = attrs
	return v, nil
}

// GetVariantByID 根据ID查询商品规格；不存在时返回 nil
func (r *productRepo) GetVariantByID(id int64) (*domain.ProductVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE id = ?`

	variant, err := scanVariant(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product variant by id: %w", err)
	}
	return variant, nil
}

// ListVariants 查询商品的全部规格
func (r *productRepo) ListVariants(productID int64) ([]*domain.ProductVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE product_id = ? ORDER BY id`

	rows, err := r.db.Query(query, productID)
	if err != nil {
		return nil, fmt.Errorf("list product variants: %w", err)
	}
	defer rows.Close()

	var variants []*domain.ProductVariant
	for rows.Next() {
		variant, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product variant: %w", err)
		}
		variants = append(variants, variant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product variants: %w", err)
	}

	return variants, nil
}
