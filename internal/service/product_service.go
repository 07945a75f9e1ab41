package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
)

// ProductService 定义商品目录的业务接口
type ProductService interface {
	Create(vendorID int64, req *domain.CreateProductRequest) (*domain.Product, error)
	Get(id int64) (*domain.ProductWithInventory, error)
	Update(id int64, actor *domain.User, req *domain.UpdateProductRequest) (*domain.Product, error)
	Delete(id int64, actor *domain.User) error
	List(req *domain.ProductListRequest) (*domain.ProductListResponse, error)

	CreateVariant(productID int64, actor *domain.User, variant *domain.ProductVariant) (*domain.ProductVariant, error)
	ListVariants(productID int64) ([]*domain.ProductVariant, error)

	// CreateImport 登记一个CSV导入批次，实际解析由后台任务执行
	CreateImport(userID int64, filePath string) (*domain.ProductImport, error)
	GetImport(id int64) (*domain.ProductImport, error)
	// RunImport 执行导入批次：逐行校验，合法行以商品+初始库存为原子单元入库
	RunImport(ctx context.Context, importID int64) error
}

// productService 是 ProductService 接口的实现
type productService struct {
	db          TxRunner
	productRepo repo.ProductRepository
	importRepo  repo.ImportRepository
	invRepo     repo.InventoryRepository
	inventory   InventoryService
	logger      *zap.Logger
}

// NewProductService 创建商品服务实例
func NewProductService(
	db TxRunner,
	productRepo repo.ProductRepository,
	importRepo repo.ImportRepository,
	invRepo repo.InventoryRepository,
	inventory InventoryService,
	logger *zap.Logger,
) ProductService {
	return &productService{
		db:          db,
		productRepo: productRepo,
		importRepo:  importRepo,
		invRepo:     invRepo,
		inventory:   inventory,
		logger:      logger,
	}
}

// Create 创建商品。SKU全局唯一，冲突在落库前校验一次，最终由唯一索引兜底。
func (s *productService) Create(vendorID int64, req *domain.CreateProductRequest) (*domain.Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errs.Validationf("product name is required")
	}
	if strings.TrimSpace(req.SKU) == "" {
		return nil, errs.Validationf("product sku is required")
	}
	if req.BasePrice <= 0 {
		return nil, errs.Validationf("base price must be positive")
	}

	existing, err := s.productRepo.GetBySKU(req.SKU)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Validationf("sku %q already exists", req.SKU)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	product := &domain.Product{
		VendorID:    vendorID,
		Name:        req.Name,
		Description: req.Description,
		SKU:         req.SKU,
		BasePrice:   req.BasePrice,
		ImagePath:   req.ImagePath,
		IsActive:    isActive,
	}
	if err := s.productRepo.Create(product); err != nil {
		if errs.IsDuplicateKey(err) {
			return nil, errs.Validationf("sku %q already exists", req.SKU)
		}
		return nil, err
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
	)
	return product, nil
}

// Get 查询商品详情及其库存
func (s *productService) Get(id int64) (*domain.ProductWithInventory, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.NotFoundf("product %d", id)
	}

	inv, err := s.invRepo.GetByKey(id, nil)
	if err != nil {
		return nil, err
	}

	return &domain.ProductWithInventory{Product: product, Inventory: inv}, nil
}

// ensureOwnership 校验操作者对商品的管理权限。供应商只能改自己的商品。
func ensureOwnership(product *domain.Product, actor *domain.User) error {
	if actor.IsAdmin() || product.VendorID == actor.ID {
		return nil
	}
	return errs.NotFoundf("product %d", product.ID)
}

// Update 更新商品信息
func (s *productService) Update(id int64, actor *domain.User, req *domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.NotFoundf("product %d", id)
	}
	if err := ensureOwnership(product, actor); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, errs.Validationf("product name must not be empty")
		}
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.BasePrice != nil {
		if *req.BasePrice <= 0 {
			return nil, errs.Validationf("base price must be positive")
		}
		product.BasePrice = *req.BasePrice
	}
	if req.ImagePath != nil {
		product.ImagePath = *req.ImagePath
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete 软删除商品
func (s *productService) Delete(id int64, actor *domain.User) error {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return err
	}
	if product == nil {
		return errs.NotFoundf("product %d", id)
	}
	if err := ensureOwnership(product, actor); err != nil {
		return err
	}
	return s.productRepo.Delete(id)
}

// List 分页查询商品
func (s *productService) List(req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	products, total, err := s.productRepo.List(req)
	if err != nil {
		return nil, err
	}

	return &domain.ProductListResponse{
		Products: products,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// CreateVariant 为商品创建规格
func (s *productService) CreateVariant(productID int64, actor *domain.User, variant *domain.ProductVariant) (*domain.ProductVariant, error) {
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.NotFoundf("product %d", productID)
	}
	if err := ensureOwnership(product, actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(variant.Name) == "" || strings.TrimSpace(variant.SKU) == "" {
		return nil, errs.Validationf("variant name and sku are required")
	}
	if variant.Price <= 0 {
		return nil, errs.Validationf("variant price must be positive")
	}

	variant.ProductID = productID
	if err := s.productRepo.CreateVariant(variant); err != nil {
		if errs.IsDuplicateKey(err) {
			return nil, errs.Validationf("variant sku %q already exists", variant.SKU)
		}
		return nil, err
	}
	return variant, nil
}

// ListVariants 查询商品的全部规格
func (s *productService) ListVariants(productID int64) ([]*domain.ProductVariant, error) {
	return s.productRepo.ListVariants(productID)
}

// CreateImport 登记CSV导入批次
func (s *productService) CreateImport(userID int64, filePath string) (*domain.ProductImport, error) {
	imp := &domain.ProductImport{
		UserID:   userID,
		FilePath: filePath,
		Status:   domain.ImportStatusPending,
	}
	if err := s.importRepo.Create(imp); err != nil {
		return nil, err
	}
	return imp, nil
}

// GetImport 查询导入批次
func (s *productService) GetImport(id int64) (*domain.ProductImport, error) {
	imp, err := s.importRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if imp == nil {
		return nil, errs.NotFoundf("product import %d", id)
	}
	return imp, nil
}

// importRow 是从CSV解析出的一行商品数据
type importRow struct {
	name              string
	sku               string
	description       string
	basePrice         float64
	initialQuantity   int
	lowStockThreshold int
}

// parseImportRow 按表头取值并做逐字段校验，返回该行的全部错误
func parseImportRow(header map[string]int, record []string) (*importRow, []string) {
	get := func(col string) string {
		idx, ok := header[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rowErrs []string
	row := &importRow{
		name:              get("name"),
		sku:               get("sku"),
		description:       get("description"),
		lowStockThreshold: defaultLowStockThreshold,
	}

	if row.name == "" || len(row.name) > 255 {
		rowErrs = append(rowErrs, "name is required and must be at most 255 characters")
	}
	if row.sku == "" {
		rowErrs = append(rowErrs, "sku is required")
	}

	price, err := strconv.ParseFloat(get("base_price"), 64)
	if err != nil || price < 0 {
		rowErrs = append(rowErrs, "base_price must be a non-negative number")
	} else {
		row.basePrice = price
	}

	qty, err := strconv.Atoi(get("initial_quantity"))
	if err != nil || qty < 0 {
		rowErrs = append(rowErrs, "initial_quantity must be a non-negative integer")
	} else {
		row.initialQuantity = qty
	}

	if raw := get("low_stock_threshold"); raw != "" {
		threshold, err := strconv.Atoi(raw)
		if err != nil || threshold < 0 {
			rowErrs = append(rowErrs, "low_stock_threshold must be a non-negative integer")
		} else {
			row.lowStockThreshold = threshold
		}
	}

	return row, rowErrs
}

// RunImport 执行CSV导入。
// 每个合法行在独立事务内创建商品并经由台账设置初始库存，
// 失败行只记录错误不中断整个批次。
func (s *productService) RunImport(ctx context.Context, importID int64) error {
	imp, err := s.importRepo.GetByID(importID)
	if err != nil {
		return err
	}
	if imp == nil {
		return errs.NotFoundf("product import %d", importID)
	}

	if err := s.importRepo.UpdateStatus(importID, domain.ImportStatusProcessing); err != nil {
		return err
	}

	file, err := os.Open(imp.FilePath)
	if err != nil {
		_ = s.importRepo.Finish(importID, domain.ImportStatusFailed, 0, 0, nil)
		return fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headerRecord, err := reader.Read()
	if err != nil {
		_ = s.importRepo.Finish(importID, domain.ImportStatusFailed, 0, 0, nil)
		return fmt.Errorf("read import header: %w", err)
	}
	header := make(map[string]int, len(headerRecord))
	for i, col := range headerRecord {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var imported, failed int
	var rowErrors []domain.ImportRowError
	lineNo := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			failed++
			rowErrors = append(rowErrors, domain.ImportRowError{Row: lineNo, Errors: []string{err.Error()}})
			continue
		}

		row, parseErrs := parseImportRow(header, record)
		if len(parseErrs) == 0 {
			if existing, err := s.productRepo.GetBySKU(row.sku); err != nil {
				// 中途失败也要收尾，否则批次停留在processing且重试会重复计数
				_ = s.importRepo.Finish(importID, domain.ImportStatusFailed, imported, failed, rowErrors)
				return fmt.Errorf("check sku %q: %w", row.sku, err)
			} else if existing != nil {
				parseErrs = append(parseErrs, fmt.Sprintf("sku %q already exists", row.sku))
			}
		}
		if len(parseErrs) > 0 {
			failed++
			rowErrors = append(rowErrors, domain.ImportRowError{Row: lineNo, Errors: parseErrs})
			continue
		}

		if err := s.importRow(ctx, imp, row); err != nil {
			failed++
			rowErrors = append(rowErrors, domain.ImportRowError{Row: lineNo, Errors: []string{err.Error()}})
			continue
		}
		imported++
	}

	s.logger.Info("product import finished",
		zap.Int64("import_id", importID),
		zap.Int("imported", imported),
		zap.Int("failed", failed),
	)
	return s.importRepo.Finish(importID, domain.ImportStatusCompleted, imported, failed, rowErrors)
}

// importRow 以商品+初始库存为原子单元入库。
// 初始库存走台账的绝对值设置路径，导入即触发低库存检测，
// 流水带 import 关联指回批次。
func (s *productService) importRow(ctx context.Context, imp *domain.ProductImport, row *importRow) error {
	return s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		product := &domain.Product{
			VendorID:    imp.UserID,
			Name:        row.name,
			Description: row.description,
			SKU:         row.sku,
			BasePrice:   row.basePrice,
			IsActive:    true,
		}
		if err := s.productRepo.CreateTx(tx, product); err != nil {
			return err
		}

		_, err := s.inventory.SetQuantityTx(tx, &domain.UpsertInventoryRequest{
			ProductID:         product.ID,
			Quantity:          row.initialQuantity,
			LowStockThreshold: &row.lowStockThreshold,
		}, domain.ImportReference(imp.ID))
		return err
	})
}
