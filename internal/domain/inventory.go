// Package domain 定义库存相关的业务领域模型和核心业务规则。
package domain

import "time"

// Inventory 表示单个(商品, 规格)组合的库存记录。
// 同一键上的全部变更都必须在持有行锁的事务内完成。
type Inventory struct {
	ID                int64     `json:"id"`
	ProductID         int64     `json:"product_id"`
	VariantID         *int64    `json:"variant_id"` // 无规格时为空
	Quantity          int       `json:"quantity"`   // 在库数量
	Reserved          int       `json:"reserved"`   // 未履约订单占用的预留数量
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AvailableQuantity 返回可售数量，下限为0。
func (i *Inventory) AvailableQuantity() int {
	if avail := i.Quantity - i.Reserved; avail > 0 {
		return avail
	}
	return 0
}

// IsLowStock 判断可售数量是否达到低库存阈值
func (i *Inventory) IsLowStock() bool {
	return i.AvailableQuantity() <= i.LowStockThreshold
}

// InventoryLogType 库存流水类型
type InventoryLogType string

const (
	InventoryLogAdjustment InventoryLogType = "adjustment" // 预留/管理调整
	InventoryLogSale       InventoryLogType = "sale"       // 销售扣减
	InventoryLogReturn     InventoryLogType = "return"     // 取消回补
)

// InventoryLog 表示一条只追加的库存审计流水。
// quantity_before/after 记录的是 Quantity 字段本身，
// 仅凭流水即可精确回放库存历史。
type InventoryLog struct {
	ID              int64            `json:"id"`
	InventoryID     int64            `json:"inventory_id"`
	Type            InventoryLogType `json:"type"`
	QuantityBefore  int              `json:"quantity_before"`
	QuantityAfter   int              `json:"quantity_after"`
	QuantityChanged int              `json:"quantity_changed"` // 带符号
	Reference       Reference        `json:"reference"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ReferenceKind 流水关联实体的种类
type ReferenceKind string

const (
	ReferenceNone   ReferenceKind = ""
	ReferenceOrder  ReferenceKind = "order"
	ReferenceImport ReferenceKind = "import"
)

// Reference 是流水到引发变更实体的带标签关联。
// 相比自由字符串类型名，种类枚举保证了审计日志可被静态地解析。
type Reference struct {
	Kind ReferenceKind `json:"kind,omitempty"`
	ID   int64         `json:"id,omitempty"`
}

// OrderReference 构造指向订单的关联
func OrderReference(orderID int64) Reference {
	return Reference{Kind: ReferenceOrder, ID: orderID}
}

// ImportReference 构造指向导入批次的关联
func ImportReference(importID int64) Reference {
	return Reference{Kind: ReferenceImport, ID: importID}
}

// IsZero 判断是否为空关联
func (r Reference) IsZero() bool {
	return r.Kind == ReferenceNone
}

// UpsertInventoryRequest 表示管理端直接设置库存数量的请求
type UpsertInventoryRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	VariantID *int64 `json:"variant_id"`
	Quantity  int    `json:"quantity" binding:"min=0"`
	// 不填时新记录取默认低库存线，已有记录保持不变
	LowStockThreshold *int `json:"low_stock_threshold"`
}

// InventoryLogListRequest 表示库存流水查询请求
type InventoryLogListRequest struct {
	InventoryID int64 `json:"inventory_id"`
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
}

// InventoryLogListResponse 表示库存流水查询响应
type InventoryLogListResponse struct {
	Logs     []*InventoryLog `json:"logs"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}
