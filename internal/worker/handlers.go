package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/invoice"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/notify"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
)

// EventHandlers 聚合事件处理器的依赖
type EventHandlers struct {
	orders     repo.OrderRepository
	users      repo.UserRepository
	sender     notify.Sender
	invoices   invoice.Generator
	adminEmail string
	logger     *zap.Logger
}

// NewEventHandlers 创建事件处理器集合
func NewEventHandlers(
	orders repo.OrderRepository,
	users repo.UserRepository,
	sender notify.Sender,
	invoices invoice.Generator,
	adminEmail string,
	logger *zap.Logger,
) *EventHandlers {
	return &EventHandlers{
		orders:     orders,
		users:      users,
		sender:     sender,
		invoices:   invoices,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// BuildRegistry 构建事件种类到处理器的显式映射表。
// 顺序即执行顺序；订单取消事件刻意没有处理器，库存回补
// 已在取消事务内完成。
func (h *EventHandlers) BuildRegistry(logger *zap.Logger) *event.Registry {
	reg := event.NewRegistry(logger)
	reg.Register(event.KindOrderCreated,
		event.HandlerFunc{HandlerName: "send_order_confirmation", Fn: h.SendOrderConfirmation},
		event.HandlerFunc{HandlerName: "generate_invoice", Fn: h.GenerateInvoice},
	)
	reg.Register(event.KindOrderStatusUpdated,
		event.HandlerFunc{HandlerName: "send_status_email", Fn: h.SendStatusEmail},
	)
	reg.Register(event.KindLowStockDetected,
		event.HandlerFunc{HandlerName: "send_low_stock_alert", Fn: h.SendLowStockAlert},
	)
	return reg
}

// customerEmail 解析订单归属用户的邮箱
func (h *EventHandlers) customerEmail(userID int64) (string, error) {
	user, err := h.users.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("user %d not found", userID)
	}
	return user.Email, nil
}

// SendOrderConfirmation 发送下单确认通知
func (h *EventHandlers) SendOrderConfirmation(ctx context.Context, evt *event.Event) error {
	var p event.OrderCreatedPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	to, err := h.customerEmail(p.UserID)
	if err != nil {
		return err
	}

	return h.sender.Send(ctx, &notify.Message{
		To:      to,
		Subject: fmt.Sprintf("Order %s confirmed", p.OrderNumber),
		Body: fmt.Sprintf("Your order %s for %.2f has been received and is pending processing.",
			p.OrderNumber, p.TotalAmount),
	})
}

// GenerateInvoice 生成发票文件并把路径记回订单。
// 文件按订单号命名，重复投递时覆盖写同一文件。
func (h *EventHandlers) GenerateInvoice(ctx context.Context, evt *event.Event) error {
	var p event.OrderCreatedPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	order, err := h.orders.GetByID(p.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %d not found", p.OrderID)
	}

	path, err := h.invoices.Generate(ctx, order)
	if err != nil {
		return err
	}
	if err := h.orders.SetInvoicePath(order.ID, path); err != nil {
		return err
	}

	h.logger.Info("invoice generated",
		zap.Int64("order_id", order.ID),
		zap.String("path", path),
	)
	return nil
}

// SendStatusEmail 发送订单状态变更通知
func (h *EventHandlers) SendStatusEmail(ctx context.Context, evt *event.Event) error {
	var p event.OrderStatusUpdatedPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	to, err := h.customerEmail(p.UserID)
	if err != nil {
		return err
	}

	return h.sender.Send(ctx, &notify.Message{
		To:      to,
		Subject: fmt.Sprintf("Order %s is now %s", p.OrderNumber, p.NewStatus),
		Body: fmt.Sprintf("Your order %s moved from %s to %s.",
			p.OrderNumber, p.OldStatus, p.NewStatus),
	})
}

// SendLowStockAlert 向管理员发送低库存告警
func (h *EventHandlers) SendLowStockAlert(ctx context.Context, evt *event.Event) error {
	var p event.LowStockDetectedPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	return h.sender.Send(ctx, &notify.Message{
		To:      h.adminEmail,
		Subject: fmt.Sprintf("Low stock: product %d", p.ProductID),
		Body: fmt.Sprintf("Inventory %d (product %d) is low: quantity %d, reserved %d, available %d, threshold %d.",
			p.InventoryID, p.ProductID, p.Quantity, p.Reserved, p.Available, p.Threshold),
	})
}
