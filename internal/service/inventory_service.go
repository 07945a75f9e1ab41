// Package service 实现业务逻辑层，编排仓储与领域对象完成用例。
package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
)

// 新建库存记录的默认低库存线
const defaultLowStockThreshold = 10

// InventoryService 定义库存台账的业务接口。
// Tx 后缀的方法在调用方事务内执行，供订单用例将库存变更
// 与订单写入合并为同一个原子边界；其余方法自带事务。
type InventoryService interface {
	// ReserveTx 预留库存。可售数量不足或记录不存在时返回错误且不产生任何变更。
	ReserveTx(tx *sql.Tx, productID int64, variantID *int64, quantity int) (*domain.Inventory, error)
	// DeductTx 扣减在库数量。只要记录存在就执行，不校验数量充足性，
	// 充足性校验由上游预留路径负责。
	DeductTx(tx *sql.Tx, productID int64, variantID *int64, quantity int, ref domain.Reference) (*domain.Inventory, error)
	// RestoreTx 返还在库数量，不触碰预留量。
	RestoreTx(tx *sql.Tx, productID int64, variantID *int64, quantity int, ref domain.Reference) (*domain.Inventory, error)
	// EnsureAvailableTx 锁定库存行并校验可售数量充足。
	// 行锁持续到事务结束，校验结果在同事务内的后续扣减前不会失效。
	EnsureAvailableTx(tx *sql.Tx, productID int64, variantID *int64, quantity int) error

	Reserve(ctx context.Context, productID int64, variantID *int64, quantity int) error
	Restore(ctx context.Context, productID int64, variantID *int64, quantity int, ref domain.Reference) error
	// SetQuantity 将在库数量设置为绝对值，记录不存在时创建
	SetQuantity(ctx context.Context, req *domain.UpsertInventoryRequest) (*domain.Inventory, error)
	// SetQuantityTx 同 SetQuantity，在调用方事务内执行，带审计关联
	SetQuantityTx(tx *sql.Tx, req *domain.UpsertInventoryRequest, ref domain.Reference) (*domain.Inventory, error)

	GetByKey(productID int64, variantID *int64) (*domain.Inventory, error)
	ListLogs(req *domain.InventoryLogListRequest) (*domain.InventoryLogListResponse, error)
	// SweepLowStock 对在售商品做一轮低库存巡检，返回发出的事件数
	SweepLowStock(ctx context.Context) (int, error)
}

// inventoryService 是 InventoryService 接口的实现
type inventoryService struct {
	db         TxRunner
	invRepo    repo.InventoryRepository
	outbox     event.Publisher
	logger     *zap.Logger
	sweepBatch int
}

// NewInventoryService 创建库存服务实例
func NewInventoryService(
	db TxRunner,
	invRepo repo.InventoryRepository,
	outbox event.Publisher,
	logger *zap.Logger,
	sweepBatch int,
) InventoryService {
	return &inventoryService{
		db:         db,
		invRepo:    invRepo,
		outbox:     outbox,
		logger:     logger,
		sweepBatch: sweepBatch,
	}
}

// appendLog 追加一条流水。quantity_after 取当前（变更后）的在库数量，
// quantity_before 由差值反推，保证 after - before == changed 恒成立。
func (s *inventoryService) appendLog(tx *sql.Tx, inv *domain.Inventory, typ domain.InventoryLogType, changed int, ref domain.Reference) error {
	return s.invRepo.AppendLogTx(tx, &domain.InventoryLog{
		InventoryID:     inv.ID,
		Type:            typ,
		QuantityBefore:  inv.Quantity - changed,
		QuantityAfter:   inv.Quantity,
		QuantityChanged: changed,
		Reference:       ref,
	})
}

// publishLowStock 在业务事务内落盘一条低库存事件
func (s *inventoryService) publishLowStock(tx *sql.Tx, inv *domain.Inventory) error {
	evt, err := event.NewLowStockDetected(inv)
	if err != nil {
		return err
	}
	return s.outbox.PublishTx(tx, evt)
}

// lock 在事务内锁定库存行，不存在时返回未找到错误
func (s *inventoryService) lock(tx *sql.Tx, productID int64, variantID *int64) (*domain.Inventory, error) {
	inv, err := s.invRepo.LockTx(tx, productID, variantID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errs.NotFoundf("inventory for product %d", productID)
	}
	return inv, nil
}

// ReserveTx 预留库存
func (s *inventoryService) ReserveTx(tx *sql.Tx, productID int64, variantID *int64, quantity int) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, errs.Validationf("reserve quantity must be positive, got %d", quantity)
	}

	inv, err := s.lock(tx, productID, variantID)
	if err != nil {
		return nil, err
	}

	if inv.AvailableQuantity() < quantity {
		return nil, errs.Validationf("insufficient stock for product %d: available %d, requested %d",
			productID, inv.AvailableQuantity(), quantity)
	}

	inv.Reserved += quantity
	if err := s.invRepo.SaveTx(tx, inv); err != nil {
		return nil, err
	}

	// 预留不改变在库数量，流水以负的可售变化量记账
	if err := s.appendLog(tx, inv, domain.InventoryLogAdjustment, -quantity, domain.Reference{}); err != nil {
		return nil, err
	}

	if inv.IsLowStock() {
		if err := s.publishLowStock(tx, inv); err != nil {
			return nil, err
		}
	}

	return inv, nil
}

// EnsureAvailableTx 锁定库存行并校验可售数量充足
func (s *inventoryService) EnsureAvailableTx(tx *sql.Tx, productID int64, variantID *int64, quantity int) error {
	inv, err := s.lock(tx, productID, variantID)
	if err != nil {
		return err
	}
	if inv.AvailableQuantity() < quantity {
		return errs.Validationf("insufficient stock for product %d: available %d, requested %d",
			productID, inv.AvailableQuantity(), quantity)
	}
	return nil
}

// DeductTx 扣减在库数量。预留量随扣减同步释放，下限为零。
// 在库数量可能因上游未预留而转负，只告警不拦截。
func (s *inventoryService) DeductTx(tx *sql.Tx, productID int64, variantID *int64, quantity int, ref domain.Reference) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, errs.Validationf("deduct quantity must be positive, got %d", quantity)
	}

	inv, err := s.lock(tx, productID, variantID)
	if err != nil {
		return nil, err
	}

	inv.Quantity -= quantity
	if inv.Reserved -= quantity; inv.Reserved < 0 {
		inv.Reserved = 0
	}
	if err := s.invRepo.SaveTx(tx, inv); err != nil {
		return nil, err
	}

	if inv.Quantity < 0 {
		s.logger.Warn("inventory quantity went negative after deduct",
			zap.Int64("inventory_id", inv.ID),
			zap.Int64("product_id", productID),
			zap.Int("quantity", inv.Quantity),
		)
	}

	if err := s.appendLog(tx, inv, domain.InventoryLogSale, -quantity, ref); err != nil {
		return nil, err
	}

	return inv, nil
}

// RestoreTx 返还在库数量
func (s *inventoryService) RestoreTx(tx *sql.Tx, productID int64, variantID *int64, quantity int, ref domain.Reference) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, errs.Validationf("restore quantity must be positive, got %d", quantity)
	}

	inv, err := s.lock(tx, productID, variantID)
	if err != nil {
		return nil, err
	}

	inv.Quantity += quantity
	if err := s.invRepo.SaveTx(tx, inv); err != nil {
		return nil, err
	}

	if err := s.appendLog(tx, inv, domain.InventoryLogReturn, quantity, ref); err != nil {
		return nil, err
	}

	return inv, nil
}

// Reserve 以独立事务执行预留
func (s *inventoryService) Reserve(ctx context.Context, productID int64, variantID *int64, quantity int) error {
	return s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		_, err := s.ReserveTx(tx, productID, variantID, quantity)
		return err
	})
}

// Restore 以独立事务执行返还
func (s *inventoryService) Restore(ctx context.Context, productID int64, variantID *int64, quantity int, ref domain.Reference) error {
	return s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		_, err := s.RestoreTx(tx, productID, variantID, quantity, ref)
		return err
	})
}

// SetQuantityTx 将在库数量设置为绝对值，记录不存在时创建
func (s *inventoryService) SetQuantityTx(tx *sql.Tx, req *domain.UpsertInventoryRequest, ref domain.Reference) (*domain.Inventory, error) {
	if req.Quantity < 0 {
		return nil, errs.Validationf("quantity must not be negative, got %d", req.Quantity)
	}
	if req.LowStockThreshold != nil && *req.LowStockThreshold < 0 {
		return nil, errs.Validationf("low stock threshold must not be negative, got %d", *req.LowStockThreshold)
	}

	inv, err := s.invRepo.LockTx(tx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}

	if inv == nil {
		threshold := defaultLowStockThreshold
		if req.LowStockThreshold != nil {
			threshold = *req.LowStockThreshold
		}
		inv = &domain.Inventory{
			ProductID:         req.ProductID,
			VariantID:         req.VariantID,
			Quantity:          req.Quantity,
			LowStockThreshold: threshold,
		}
		if err := s.invRepo.CreateTx(tx, inv); err != nil {
			// 并发创建撞上唯一键，按冲突重试整个事务后走更新路径
			if errs.IsDuplicateKey(err) {
				return nil, fmt.Errorf("inventory row already exists: %w", errs.ErrConflict)
			}
			return nil, err
		}
		if err := s.appendLog(tx, inv, domain.InventoryLogAdjustment, req.Quantity, ref); err != nil {
			return nil, err
		}
	} else {
		changed := req.Quantity - inv.Quantity
		inv.Quantity = req.Quantity
		if req.LowStockThreshold != nil {
			inv.LowStockThreshold = *req.LowStockThreshold
		}
		if err := s.invRepo.SaveTx(tx, inv); err != nil {
			return nil, err
		}
		if changed != 0 {
			if err := s.appendLog(tx, inv, domain.InventoryLogAdjustment, changed, ref); err != nil {
				return nil, err
			}
		}
	}

	if inv.IsLowStock() {
		if err := s.publishLowStock(tx, inv); err != nil {
			return nil, err
		}
	}

	return inv, nil
}

// SetQuantity 以独立事务设置在库数量
func (s *inventoryService) SetQuantity(ctx context.Context, req *domain.UpsertInventoryRequest) (*domain.Inventory, error) {
	var inv *domain.Inventory
	err := s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		var err error
		inv, err = s.SetQuantityTx(tx, req, domain.Reference{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetByKey 查询库存记录
func (s *inventoryService) GetByKey(productID int64, variantID *int64) (*domain.Inventory, error) {
	inv, err := s.invRepo.GetByKey(productID, variantID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errs.NotFoundf("inventory for product %d", productID)
	}
	return inv, nil
}

// ListLogs 分页查询库存流水
func (s *inventoryService) ListLogs(req *domain.InventoryLogListRequest) (*domain.InventoryLogListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	logs, total, err := s.invRepo.ListLogs(req)
	if err != nil {
		return nil, err
	}

	return &domain.InventoryLogListResponse{
		Logs:     logs,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// SweepLowStock 按主键游标分批巡检低库存，每条命中记录发一条事件。
// 不做跨轮去重，持续低库存的商品每轮都会再次告警。
func (s *inventoryService) SweepLowStock(ctx context.Context) (int, error) {
	var emitted int
	var afterID int64

	for {
		invs, err := s.invRepo.ListLowStockAfter(afterID, s.sweepBatch)
		if err != nil {
			return emitted, err
		}
		if len(invs) == 0 {
			return emitted, nil
		}

		err = s.db.WithinTx(ctx, func(tx *sql.Tx) error {
			for _, inv := range invs {
				if err := s.publishLowStock(tx, inv); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return emitted, err
		}

		emitted += len(invs)
		afterID = invs[len(invs)-1].ID

		if len(invs) < s.sweepBatch {
			return emitted, nil
		}
	}
}
