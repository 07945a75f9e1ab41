// Package domain 定义商品目录相关的业务领域模型。
package domain

import (
	"encoding/json"
	"time"
)

// Product 表示商品领域模型
type Product struct {
	ID          int64      `json:"id"`
	VendorID    int64      `json:"vendor_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	SKU         string     `json:"sku"` // 全局唯一
	BasePrice   float64    `json:"base_price"`
	ImagePath   string     `json:"image_path,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"` // 软删除
}

// IsAvailable 判断商品是否可售
func (p *Product) IsAvailable() bool {
	return p.IsActive && p.DeletedAt == nil
}

// ProductVariant 表示商品规格，持有独立的价格与SKU。
type ProductVariant struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      float64         `json:"price"`
	Attributes json.RawMessage `json:"attributes,omitempty"` // 规格属性，JSON对象
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=255"`
	Description string  `json:"description"`
	SKU         string  `json:"sku" binding:"required,min=1,max=100"`
	BasePrice   float64 `json:"base_price" binding:"required,gt=0"`
	ImagePath   string  `json:"image_path"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateProductRequest 表示更新商品请求
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	BasePrice   *float64 `json:"base_price"`
	ImagePath   *string  `json:"image_path"`
	IsActive    *bool    `json:"is_active"`
}

// ProductListRequest 表示商品列表查询请求
type ProductListRequest struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	VendorID *int64  `json:"vendor_id"`
	IsActive *bool   `json:"is_active"`
	Keyword  *string `json:"keyword"` // 名称/SKU关键字
}

// ProductListResponse 表示商品列表查询响应
type ProductListResponse struct {
	Products []*Product `json:"products"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// ProductWithInventory 表示带库存信息的商品
type ProductWithInventory struct {
	*Product
	Inventory *Inventory `json:"inventory"`
}
