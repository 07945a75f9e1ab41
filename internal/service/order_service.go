package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
)

// 订单号唯一索引碰撞后的重新生成次数上限
const orderNumberMaxAttempts = 3

// OrderService 定义订单生命周期的业务接口
type OrderService interface {
	// Create 创建订单。商品校验、订单与行项目落库、逐项库存扣减
	// 合并为同一个事务，任何一步失败整体回滚。
	Create(ctx context.Context, user *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error)
	// Cancel 取消订单并逐项返还库存。仅 pending/processing 状态可取消。
	Cancel(ctx context.Context, orderID int64, actor *domain.User) (*domain.Order, error)
	// UpdateStatus 按状态机推进订单状态。取消请走 Cancel，这里不回补库存。
	UpdateStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus) (*domain.Order, error)
	Get(orderID int64, actor *domain.User) (*domain.Order, error)
	List(req *domain.OrderListRequest) (*domain.OrderListResponse, error)
	// SetInvoicePath 记录发票文件路径，由发票生成处理器回调
	SetInvoicePath(orderID int64, path string) error
}

// orderService 是 OrderService 接口的实现
type orderService struct {
	db          TxRunner
	orderRepo   repo.OrderRepository
	productRepo repo.ProductRepository
	inventory   InventoryService
	outbox      event.Publisher
	logger      *zap.Logger
	cfg         config.OrderConfig
}

// NewOrderService 创建订单服务实例
func NewOrderService(
	db TxRunner,
	orderRepo repo.OrderRepository,
	productRepo repo.ProductRepository,
	inventory InventoryService,
	outbox event.Publisher,
	logger *zap.Logger,
	cfg config.OrderConfig,
) OrderService {
	return &orderService{
		db:          db,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		inventory:   inventory,
		outbox:      outbox,
		logger:      logger,
		cfg:         cfg,
	}
}

// round2 金额四舍五入到分
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// pricedItem 是校验定价后的下单行项目
type pricedItem struct {
	productID int64
	variantID *int64
	quantity  int
	price     float64
}

// resolveItems 校验商品可售性并解析单价。
// 指定规格时取规格价，否则取商品基础价；价格快照进订单，后续改价不影响已下单。
func (s *orderService) resolveItems(items []domain.CreateOrderItemRequest) ([]pricedItem, error) {
	if len(items) == 0 {
		return nil, errs.Validationf("order must contain at least one item")
	}

	resolved := make([]pricedItem, 0, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, errs.Validationf("item %d: quantity must be positive", i)
		}

		product, err := s.productRepo.GetByID(item.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, errs.NotFoundf("product %d", item.ProductID)
		}
		if !product.IsAvailable() {
			return nil, errs.Validationf("product %q is not available", product.Name)
		}

		price := product.BasePrice
		if item.VariantID != nil {
			variant, err := s.productRepo.GetVariantByID(*item.VariantID)
			if err != nil {
				return nil, err
			}
			if variant == nil || variant.ProductID != product.ID {
				return nil, errs.NotFoundf("variant %d of product %d", *item.VariantID, product.ID)
			}
			price = variant.Price
		}

		resolved = append(resolved, pricedItem{
			productID: item.ProductID,
			variantID: item.VariantID,
			quantity:  item.Quantity,
			price:     price,
		})
	}

	return resolved, nil
}

// generateOrderNumber 生成对外可见的订单号。
// 唯一性最终由数据库唯一索引兜底，碰撞时调用方重新生成。
func (s *orderService) generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return fmt.Sprintf("%s-%s-%s", s.cfg.NumberPrefix, time.Now().Format("20060102"), suffix)
}

// createOrderRow 插入订单头，订单号碰撞时重新生成有限次
func (s *orderService) createOrderRow(tx *sql.Tx, order *domain.Order) error {
	for attempt := 0; ; attempt++ {
		order.OrderNumber = s.generateOrderNumber()
		err := s.orderRepo.CreateTx(tx, order)
		if err == nil {
			return nil
		}
		if !errs.IsDuplicateKey(err) || attempt+1 >= orderNumberMaxAttempts {
			return err
		}
		s.logger.Warn("order number collision, regenerating",
			zap.String("order_number", order.OrderNumber))
	}
}

// Create 创建订单
func (s *orderService) Create(ctx context.Context, user *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error) {
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, errs.Validationf("shipping address is required")
	}

	items, err := s.resolveItems(req.Items)
	if err != nil {
		return nil, err
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.price * float64(item.quantity)
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal * s.cfg.TaxRate)

	order := &domain.Order{
		UserID:          user.ID,
		Status:          domain.OrderStatusPending,
		Subtotal:        subtotal,
		Tax:             tax,
		TotalAmount:     round2(subtotal + tax),
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	}

	err = s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		// 先锁定全部库存行并校验可售量，行锁一直持有到提交，
		// 校验与扣减之间不会被并发下单穿插。
		for _, item := range items {
			if err := s.inventory.EnsureAvailableTx(tx, item.productID, item.variantID, item.quantity); err != nil {
				return err
			}
		}

		if err := s.createOrderRow(tx, order); err != nil {
			return err
		}

		order.Items = order.Items[:0]
		for _, item := range items {
			orderItem := &domain.OrderItem{
				OrderID:   order.ID,
				ProductID: item.productID,
				VariantID: item.variantID,
				Quantity:  item.quantity,
				Price:     item.price,
				Subtotal:  round2(item.price * float64(item.quantity)),
			}
			if err := s.orderRepo.CreateItemTx(tx, orderItem); err != nil {
				return err
			}
			order.Items = append(order.Items, orderItem)

			if _, err := s.inventory.DeductTx(tx, item.productID, item.variantID, item.quantity,
				domain.OrderReference(order.ID)); err != nil {
				return err
			}
		}

		evt, err := event.NewOrderCreated(order)
		if err != nil {
			return err
		}
		return s.outbox.PublishTx(tx, evt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", user.ID),
		zap.Float64("total_amount", order.TotalAmount),
	)
	return order, nil
}

// Cancel 取消订单并返还库存
func (s *orderService) Cancel(ctx context.Context, orderID int64, actor *domain.User) (*domain.Order, error) {
	var cancelled *domain.Order

	err := s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		order, err := s.orderRepo.LockTx(tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return errs.NotFoundf("order %d", orderID)
		}
		if !actor.CanManageOrders() && order.UserID != actor.ID {
			return errs.NotFoundf("order %d", orderID)
		}
		if !order.CanBeCancelled() {
			return errs.Validationf("order %s cannot be cancelled in status %s", order.OrderNumber, order.Status)
		}

		items, err := s.orderRepo.GetItemsTx(tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, err := s.inventory.RestoreTx(tx, item.ProductID, item.VariantID, item.Quantity,
				domain.OrderReference(order.ID)); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := s.orderRepo.UpdateStatusTx(tx, orderID, domain.OrderStatusCancelled, &now); err != nil {
			return err
		}

		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.Items = items
		cancelled = order

		evt, err := event.NewOrderCancelled(order)
		if err != nil {
			return err
		}
		return s.outbox.PublishTx(tx, evt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled",
		zap.Int64("order_id", cancelled.ID),
		zap.String("order_number", cancelled.OrderNumber),
	)
	return cancelled, nil
}

// UpdateStatus 推进订单状态
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus) (*domain.Order, error) {
	if !newStatus.IsValid() {
		return nil, errs.Validationf("unknown order status %q", newStatus)
	}

	var updated *domain.Order

	err := s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		order, err := s.orderRepo.LockTx(tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return errs.NotFoundf("order %d", orderID)
		}

		oldStatus := order.Status
		if !oldStatus.CanTransitionTo(newStatus) {
			return errs.Validationf("cannot transition order %s from %s to %s",
				order.OrderNumber, oldStatus, newStatus)
		}

		var cancelledAt *time.Time
		if newStatus == domain.OrderStatusCancelled {
			now := time.Now()
			cancelledAt = &now
		}
		if err := s.orderRepo.UpdateStatusTx(tx, orderID, newStatus, cancelledAt); err != nil {
			return err
		}

		order.Status = newStatus
		order.CancelledAt = cancelledAt
		updated = order

		evt, err := event.NewOrderStatusUpdated(order, oldStatus, newStatus)
		if err != nil {
			return err
		}
		return s.outbox.PublishTx(tx, evt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.Int64("order_id", updated.ID),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// Get 查询订单详情。非管理角色只能查看自己的订单。
func (s *orderService) Get(orderID int64, actor *domain.User) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errs.NotFoundf("order %d", orderID)
	}
	if !actor.CanManageOrders() && order.UserID != actor.ID {
		return nil, errs.NotFoundf("order %d", orderID)
	}
	return order, nil
}

// List 分页查询订单
func (s *orderService) List(req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	if req.Status != nil && !req.Status.IsValid() {
		return nil, errs.Validationf("unknown order status %q", *req.Status)
	}

	orders, total, err := s.orderRepo.List(req)
	if err != nil {
		return nil, err
	}

	return &domain.OrderListResponse{
		Orders:   orders,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// SetInvoicePath 记录发票文件路径
func (s *orderService) SetInvoicePath(orderID int64, path string) error {
	return s.orderRepo.SetInvoicePath(orderID, path)
}
