// Package domain 定义订单相关的业务领域模型和状态机规则。
package domain

import "time"

// OrderStatus 定义订单状态类型
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"    // 待处理
	OrderStatusProcessing OrderStatus = "processing" // 处理中
	OrderStatusShipped    OrderStatus = "shipped"    // 已发货
	OrderStatusDelivered  OrderStatus = "delivered"  // 已送达（终态）
	OrderStatusCancelled  OrderStatus = "cancelled"  // 已取消（终态）
)

// allowedTransitions 订单状态机的完整转移表
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// IsValid 判断状态值是否合法
func (s OrderStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo 判断是否允许转移到目标状态
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// CanBeCancelled 判断当前状态下订单是否可取消
func (s OrderStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// IsTerminal 判断是否为终态
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Order 表示订单聚合根。
// 金额字段在创建时一次性计算并冻结，后续商品调价不回溯已有订单。
type Order struct {
	ID              int64       `json:"id"`
	OrderNumber     string      `json:"order_number"` // 全局唯一，对外可见
	UserID          int64       `json:"user_id"`
	Status          OrderStatus `json:"status"`
	Subtotal        float64     `json:"subtotal"`
	Tax             float64     `json:"tax"`
	TotalAmount     float64     `json:"total_amount"`
	ShippingAddress string      `json:"shipping_address"`
	Notes           string      `json:"notes,omitempty"`
	CancelledAt     *time.Time  `json:"cancelled_at"`
	InvoicePath     *string     `json:"invoice_path"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	Items []*OrderItem `json:"items,omitempty"`
}

// CanBeCancelled 判断订单是否可取消
func (o *Order) CanBeCancelled() bool {
	return o.Status.CanBeCancelled()
}

// OrderItem 表示订单行项目。
// Price 与 Subtotal 是下单时刻的价格快照。
type OrderItem struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	VariantID *int64  `json:"variant_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

// CreateOrderItemRequest 表示下单请求中的单个行项目
type CreateOrderItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	VariantID *int64 `json:"variant_id"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// CreateOrderRequest 表示创建订单请求
type CreateOrderRequest struct {
	Items           []CreateOrderItemRequest `json:"items" binding:"required,min=1"`
	ShippingAddress string                   `json:"shipping_address" binding:"required"`
	Notes           string                   `json:"notes"`
}

// UpdateOrderStatusRequest 表示订单状态变更请求
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

// OrderListRequest 表示订单列表查询请求
type OrderListRequest struct {
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	UserID   *int64       `json:"user_id"`
	Status   *OrderStatus `json:"status"`
	FromDate *time.Time   `json:"from_date"`
	ToDate   *time.Time   `json:"to_date"`
}

// OrderListResponse 表示订单列表查询响应
type OrderListResponse struct {
	Orders   []*Order `json:"orders"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}
