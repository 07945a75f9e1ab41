package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/cache"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// CachedProductRepository 带缓存的商品仓储。
// 只缓存单个商品与规格的读路径，列表查询直读数据库，
// 库存与订单数据绝不经过这层。
type CachedProductRepository struct {
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, cache cache.Cache, ttl time.Duration) ProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

func productKey(id int64) string      { return fmt.Sprintf("product:id:%d", id) }
func productSKUKey(sku string) string { return "product:sku:" + sku }
func variantKey(id int64) string      { return fmt.Sprintf("variant:id:%d", id) }

// Create 创建商品（清除相关缓存）
func (r *CachedProductRepository) Create(product *domain.Product) error {
	if err := r.repo.Create(product); err != nil {
		return err
	}

	ctx := context.Background()
	_ = r.cache.Del(ctx, productKey(product.ID), productSKUKey(product.SKU))
	return nil
}

// CreateTx 在调用方事务内创建商品（清除相关缓存）
func (r *CachedProductRepository) CreateTx(tx *sql.Tx, product *domain.Product) error {
	if err := r.repo.CreateTx(tx, product); err != nil {
		return err
	}

	_ = r.cache.Del(context.Background(), productKey(product.ID), productSKUKey(product.SKU))
	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(id int64) (*domain.Product, error) {
	ctx := context.Background()
	key := productKey(id)

	var cached domain.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	product, err := r.repo.GetByID(id)
	if err != nil || product == nil {
		return product, err
	}

	_ = r.cache.Set(ctx, key, product, r.ttl)
	return product, nil
}

// GetBySKU 根据SKU获取商品（带缓存）
func (r *CachedProductRepository) GetBySKU(sku string) (*domain.Product, error) {
	ctx := context.Background()
	key := productSKUKey(sku)

	var cached domain.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	product, err := r.repo.GetBySKU(sku)
	if err != nil || product == nil {
		return product, err
	}

	_ = r.cache.Set(ctx, key, product, r.ttl)
	_ = r.cache.Set(ctx, productKey(product.ID), product, r.ttl)
	return product, nil
}

// Update 更新商品（清除相关缓存）
func (r *CachedProductRepository) Update(product *domain.Product) error {
	if err := r.repo.Update(product); err != nil {
		return err
	}

	ctx := context.Background()
	_ = r.cache.Del(ctx, productKey(product.ID), productSKUKey(product.SKU))
	return nil
}

// Delete 软删除商品（清除相关缓存）
func (r *CachedProductRepository) Delete(id int64) error {
	product, err := r.repo.GetByID(id)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(id); err != nil {
		return err
	}

	ctx := context.Background()
	keys := []string{productKey(id)}
	if product != nil {
		keys = append(keys, productSKUKey(product.SKU))
	}
	_ = r.cache.Del(ctx, keys...)
	return nil
}

// List 列表查询直读数据库，避免维护列表缓存的失效矩阵
func (r *CachedProductRepository) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	return r.repo.List(req)
}

// CreateVariant 创建商品规格（清除相关缓存）
func (r *CachedProductRepository) CreateVariant(variant *domain.ProductVariant) error {
	if err := r.repo.CreateVariant(variant); err != nil {
		return err
	}

	_ = r.cache.Del(context.Background(), variantKey(variant.ID))
	return nil
}

// GetVariantByID 根据ID获取商品规格（带缓存）
func (r *CachedProductRepository) GetVariantByID(id int64) (*domain.ProductVariant, error) {
	ctx := context.Background()
	key := variantKey(id)

	var cached domain.ProductVariant
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	variant, err := r.repo.GetVariantByID(id)
	if err != nil || variant == nil {
		return variant, err
	}

	_ = r.cache.Set(ctx, key, variant, r.ttl)
	return variant, nil
}

// ListVariants 规格列表直读数据库
func (r *CachedProductRepository) ListVariants(productID int64) ([]*domain.ProductVariant, error) {
	return r.repo.ListVariants(productID)
}
