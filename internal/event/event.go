// Package event 定义领域事件及其分发契约。
// 事件在业务事务内写入outbox，提交后由转发器投递到消息队列，
// 确保"先提交、后通知"：回滚的事务绝不产生事件。
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// Kind 领域事件种类
type Kind string

const (
	KindOrderCreated       Kind = "order_created"
	KindOrderCancelled     Kind = "order_cancelled"
	KindOrderStatusUpdated Kind = "order_status_updated"
	KindLowStockDetected   Kind = "low_stock_detected"
)

// Event 领域事件信封。
// 投递语义为至少一次，处理器必须幂等或容忍重复。
type Event struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   int64           `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// New 构造一个领域事件并序列化载荷
func New(kind Kind, aggregateType string, aggregateID int64, payload interface{}) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{
		ID:            uuid.New().String(),
		Kind:          kind,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       body,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// OrderCreatedPayload 订单创建事件载荷
type OrderCreatedPayload struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      int64     `json:"user_id"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderCancelledPayload 订单取消事件载荷
type OrderCancelledPayload struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      int64     `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderStatusUpdatedPayload 订单状态变更事件载荷
type OrderStatusUpdatedPayload struct {
	OrderID     int64              `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	UserID      int64              `json:"user_id"`
	OldStatus   domain.OrderStatus `json:"old_status"`
	NewStatus   domain.OrderStatus `json:"new_status"`
}

// LowStockDetectedPayload 低库存事件载荷
type LowStockDetectedPayload struct {
	InventoryID int64  `json:"inventory_id"`
	ProductID   int64  `json:"product_id"`
	VariantID   *int64 `json:"variant_id"`
	Quantity    int    `json:"quantity"`
	Reserved    int    `json:"reserved"`
	Available   int    `json:"available"`
	Threshold   int    `json:"threshold"`
}

// NewOrderCreated 从订单构造创建事件
func NewOrderCreated(order *domain.Order) (*Event, error) {
	return New(KindOrderCreated, "order", order.ID, &OrderCreatedPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	})
}

// NewOrderCancelled 从订单构造取消事件
func NewOrderCancelled(order *domain.Order) (*Event, error) {
	cancelledAt := time.Now().UTC()
	if order.CancelledAt != nil {
		cancelledAt = *order.CancelledAt
	}
	return New(KindOrderCancelled, "order", order.ID, &OrderCancelledPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		CancelledAt: cancelledAt,
	})
}

// NewOrderStatusUpdated 从状态变更构造事件
func NewOrderStatusUpdated(order *domain.Order, oldStatus, newStatus domain.OrderStatus) (*Event, error) {
	return New(KindOrderStatusUpdated, "order", order.ID, &OrderStatusUpdatedPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
	})
}

// NewLowStockDetected 从库存记录构造低库存事件
func NewLowStockDetected(inv *domain.Inventory) (*Event, error) {
	return New(KindLowStockDetected, "inventory", inv.ID, &LowStockDetectedPayload{
		InventoryID: inv.ID,
		ProductID:   inv.ProductID,
		VariantID:   inv.VariantID,
		Quantity:    inv.Quantity,
		Reserved:    inv.Reserved,
		Available:   inv.AvailableQuantity(),
		Threshold:   inv.LowStockThreshold,
	})
}
