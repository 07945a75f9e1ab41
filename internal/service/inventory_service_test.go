package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
)

func newInventoryFixture() (*mockInventoryRepository, *mockPublisher, InventoryService) {
	invRepo := newMockInventoryRepository()
	pub := &mockPublisher{}
	svc := NewInventoryService(fakeTxRunner{}, invRepo, pub, zap.NewNop(), 100)
	return invRepo, pub, svc
}

// 每条流水都必须满足 after - before == changed
func checkLogInvariant(t *testing.T, logs []*domain.InventoryLog) {
	t.Helper()
	for i, log := range logs {
		if log.QuantityAfter-log.QuantityBefore != log.QuantityChanged {
			t.Errorf("log %d: after(%d) - before(%d) != changed(%d)",
				i, log.QuantityAfter, log.QuantityBefore, log.QuantityChanged)
		}
	}
}

func TestInventoryServiceReserve(t *testing.T) {
	invRepo, pub, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 10, LowStockThreshold: 5})

	inv, err := svc.ReserveTx(nil, 1, nil, 3)
	if err != nil {
		t.Fatalf("ReserveTx() error = %v", err)
	}
	if inv.Reserved != 3 || inv.Quantity != 10 {
		t.Errorf("after reserve: quantity = %d, reserved = %d, want 10, 3", inv.Quantity, inv.Reserved)
	}
	if got := invRepo.stock(1, nil).Reserved; got != 3 {
		t.Errorf("persisted reserved = %d, want 3", got)
	}

	if len(invRepo.logs) != 1 {
		t.Fatalf("log count = %d, want 1", len(invRepo.logs))
	}
	log := invRepo.logs[0]
	if log.Type != domain.InventoryLogAdjustment || log.QuantityChanged != -3 {
		t.Errorf("log = {type: %s, changed: %d}, want {adjustment, -3}", log.Type, log.QuantityChanged)
	}
	checkLogInvariant(t, invRepo.logs)

	// 可售 7 > 阈值 5，不应告警
	if len(pub.events) != 0 {
		t.Errorf("events = %v, want none", pub.kinds())
	}
}

func TestInventoryServiceReserveInsufficient(t *testing.T) {
	invRepo, pub, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 10, Reserved: 8, LowStockThreshold: 0})

	_, err := svc.ReserveTx(nil, 1, nil, 5)
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("ReserveTx() error = %v, want validation error", err)
	}

	// 失败的预留不产生任何变更
	stock := invRepo.stock(1, nil)
	if stock.Quantity != 10 || stock.Reserved != 8 {
		t.Errorf("stock mutated on failed reserve: %+v", stock)
	}
	if len(invRepo.logs) != 0 || len(pub.events) != 0 {
		t.Errorf("failed reserve wrote logs (%d) or events (%d)", len(invRepo.logs), len(pub.events))
	}
}

func TestInventoryServiceReserveMissingRecord(t *testing.T) {
	_, _, svc := newInventoryFixture()

	_, err := svc.ReserveTx(nil, 99, nil, 1)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("ReserveTx() error = %v, want not found", err)
	}
}

func TestInventoryServiceReserveEmitsLowStock(t *testing.T) {
	invRepo, pub, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 10, LowStockThreshold: 5})

	if _, err := svc.ReserveTx(nil, 1, nil, 6); err != nil {
		t.Fatalf("ReserveTx() error = %v", err)
	}

	// 可售 4 <= 阈值 5
	if len(pub.events) != 1 || pub.events[0].Kind != event.KindLowStockDetected {
		t.Fatalf("events = %v, want [low_stock_detected]", pub.kinds())
	}
}

func TestInventoryServiceDeduct(t *testing.T) {
	invRepo, pub, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 10, Reserved: 7, LowStockThreshold: 0})

	inv, err := svc.DeductTx(nil, 1, nil, 7, domain.OrderReference(42))
	if err != nil {
		t.Fatalf("DeductTx() error = %v", err)
	}
	if inv.Quantity != 3 || inv.Reserved != 0 {
		t.Errorf("after deduct: quantity = %d, reserved = %d, want 3, 0", inv.Quantity, inv.Reserved)
	}

	if len(invRepo.logs) != 1 {
		t.Fatalf("log count = %d, want 1", len(invRepo.logs))
	}
	log := invRepo.logs[0]
	if log.Type != domain.InventoryLogSale || log.QuantityChanged != -7 {
		t.Errorf("log = {type: %s, changed: %d}, want {sale, -7}", log.Type, log.QuantityChanged)
	}
	if log.Reference.Kind != domain.ReferenceOrder || log.Reference.ID != 42 {
		t.Errorf("log reference = %+v, want order 42", log.Reference)
	}
	checkLogInvariant(t, invRepo.logs)

	// 扣减路径不发低库存事件，告警由预留与巡检负责
	if len(pub.events) != 0 {
		t.Errorf("events = %v, want none", pub.kinds())
	}
}

func TestInventoryServiceDeductBelowZero(t *testing.T) {
	invRepo, _, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 2, Reserved: 1, LowStockThreshold: 0})

	// 扣减不校验充足性，在库可以转负，预留下限为零
	inv, err := svc.DeductTx(nil, 1, nil, 5, domain.Reference{})
	if err != nil {
		t.Fatalf("DeductTx() error = %v", err)
	}
	if inv.Quantity != -3 || inv.Reserved != 0 {
		t.Errorf("after deduct: quantity = %d, reserved = %d, want -3, 0", inv.Quantity, inv.Reserved)
	}
	checkLogInvariant(t, invRepo.logs)
}

func TestInventoryServiceRestore(t *testing.T) {
	invRepo, _, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 3, Reserved: 2, LowStockThreshold: 0})

	inv, err := svc.RestoreTx(nil, 1, nil, 4, domain.OrderReference(7))
	if err != nil {
		t.Fatalf("RestoreTx() error = %v", err)
	}
	if inv.Quantity != 7 || inv.Reserved != 2 {
		t.Errorf("after restore: quantity = %d, reserved = %d, want 7, 2", inv.Quantity, inv.Reserved)
	}

	log := invRepo.logs[0]
	if log.Type != domain.InventoryLogReturn || log.QuantityChanged != 4 {
		t.Errorf("log = {type: %s, changed: %d}, want {return, +4}", log.Type, log.QuantityChanged)
	}
	checkLogInvariant(t, invRepo.logs)
}

func TestInventoryServiceEnsureAvailable(t *testing.T) {
	invRepo, _, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 5, Reserved: 2, LowStockThreshold: 0})

	if err := svc.EnsureAvailableTx(nil, 1, nil, 3); err != nil {
		t.Errorf("EnsureAvailableTx(3) error = %v, want nil", err)
	}
	if err := svc.EnsureAvailableTx(nil, 1, nil, 4); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("EnsureAvailableTx(4) error = %v, want validation error", err)
	}
}

func TestInventoryServiceSetQuantityCreates(t *testing.T) {
	invRepo, pub, svc := newInventoryFixture()
	threshold := 5

	inv, err := svc.SetQuantityTx(nil, &domain.UpsertInventoryRequest{
		ProductID:         1,
		Quantity:          50,
		LowStockThreshold: &threshold,
	}, domain.ImportReference(9))
	if err != nil {
		t.Fatalf("SetQuantityTx() error = %v", err)
	}
	if inv.Quantity != 50 || inv.LowStockThreshold != 5 {
		t.Errorf("created inventory = %+v, want quantity 50, threshold 5", inv)
	}

	if len(invRepo.logs) != 1 {
		t.Fatalf("log count = %d, want 1", len(invRepo.logs))
	}
	log := invRepo.logs[0]
	if log.Type != domain.InventoryLogAdjustment || log.QuantityChanged != 50 {
		t.Errorf("log = {type: %s, changed: %d}, want {adjustment, +50}", log.Type, log.QuantityChanged)
	}
	if log.Reference.Kind != domain.ReferenceImport || log.Reference.ID != 9 {
		t.Errorf("log reference = %+v, want import 9", log.Reference)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %v, want none", pub.kinds())
	}
}

// 自带阈值的新记录以该阈值判定低库存，而不是默认线
func TestInventoryServiceSetQuantityCustomThreshold(t *testing.T) {
	_, pub, svc := newInventoryFixture()
	threshold := 2

	// 数量 3 低于默认线 10 但高于自定义线 2
	if _, err := svc.SetQuantityTx(nil, &domain.UpsertInventoryRequest{
		ProductID:         1,
		Quantity:          3,
		LowStockThreshold: &threshold,
	}, domain.Reference{}); err != nil {
		t.Fatalf("SetQuantityTx() error = %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %v, want none", pub.kinds())
	}
}

func TestInventoryServiceSetQuantityUpdates(t *testing.T) {
	invRepo, pub, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 20, LowStockThreshold: 10})

	inv, err := svc.SetQuantityTx(nil, &domain.UpsertInventoryRequest{ProductID: 1, Quantity: 4}, domain.Reference{})
	if err != nil {
		t.Fatalf("SetQuantityTx() error = %v", err)
	}
	if inv.Quantity != 4 || inv.LowStockThreshold != 10 {
		t.Errorf("updated inventory = %+v, want quantity 4, threshold kept at 10", inv)
	}

	log := invRepo.logs[0]
	if log.QuantityChanged != -16 || log.QuantityBefore != 20 || log.QuantityAfter != 4 {
		t.Errorf("log = {before: %d, after: %d, changed: %d}, want {20, 4, -16}",
			log.QuantityBefore, log.QuantityAfter, log.QuantityChanged)
	}

	if len(pub.events) != 1 || pub.events[0].Kind != event.KindLowStockDetected {
		t.Fatalf("events = %v, want [low_stock_detected]", pub.kinds())
	}
}

func TestInventoryServiceSetQuantityNoChangeNoLog(t *testing.T) {
	invRepo, _, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 15, LowStockThreshold: 0})

	if _, err := svc.SetQuantityTx(nil, &domain.UpsertInventoryRequest{ProductID: 1, Quantity: 15}, domain.Reference{}); err != nil {
		t.Fatalf("SetQuantityTx() error = %v", err)
	}
	if len(invRepo.logs) != 0 {
		t.Errorf("log count = %d, want 0 for unchanged quantity", len(invRepo.logs))
	}
}

func TestInventoryServiceRejectsNonPositiveQuantities(t *testing.T) {
	invRepo, _, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 10})

	if _, err := svc.ReserveTx(nil, 1, nil, 0); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("ReserveTx(0) error = %v, want validation error", err)
	}
	if _, err := svc.DeductTx(nil, 1, nil, -1, domain.Reference{}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("DeductTx(-1) error = %v, want validation error", err)
	}
	if _, err := svc.RestoreTx(nil, 1, nil, 0, domain.Reference{}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("RestoreTx(0) error = %v, want validation error", err)
	}
	if _, err := svc.SetQuantityTx(nil, &domain.UpsertInventoryRequest{ProductID: 1, Quantity: -5}, domain.Reference{}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("SetQuantityTx(-5) error = %v, want validation error", err)
	}
}

// 并发创建同一库存行撞上唯一键时归类为冲突，事务整体重试后走更新路径
func TestInventoryServiceSetQuantityCreateRace(t *testing.T) {
	invRepo, _, svc := newInventoryFixture()
	invRepo.createErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

	_, err := svc.SetQuantityTx(nil, &domain.UpsertInventoryRequest{
		ProductID: 1,
		Quantity:  10,
	}, domain.Reference{})
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("SetQuantityTx() error = %v, want retryable conflict", err)
	}
	if !errs.IsRetryable(err) {
		t.Errorf("IsRetryable() = false, want true for duplicate-create race")
	}
}

func TestInventoryServiceSweepLowStock(t *testing.T) {
	invRepo, pub, svc := newInventoryFixture()
	invRepo.seed(&domain.Inventory{ProductID: 1, Quantity: 2, LowStockThreshold: 5})
	invRepo.seed(&domain.Inventory{ProductID: 2, Quantity: 0, LowStockThreshold: 0})
	invRepo.seed(&domain.Inventory{ProductID: 3, Quantity: 100, LowStockThreshold: 5})
	// 巡检按总量判定，预留压低可售量不触发巡检告警
	invRepo.seed(&domain.Inventory{ProductID: 4, Quantity: 10, Reserved: 8, LowStockThreshold: 5})

	emitted, err := svc.SweepLowStock(context.Background())
	if err != nil {
		t.Fatalf("SweepLowStock() error = %v", err)
	}
	if emitted != 2 {
		t.Errorf("emitted = %d, want 2", emitted)
	}
	if len(pub.events) != 2 {
		t.Fatalf("events = %v, want 2 low stock events", pub.kinds())
	}
	for _, evt := range pub.events {
		if evt.Kind != event.KindLowStockDetected {
			t.Errorf("event kind = %s, want low_stock_detected", evt.Kind)
		}
	}
}
