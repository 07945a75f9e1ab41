package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
)

// fakeTxRunner 直接以空事务句柄执行回调，mock仓储不使用句柄
type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func invKey(productID int64, variantID *int64) string {
	if variantID == nil {
		return fmt.Sprintf("%d:-", productID)
	}
	return fmt.Sprintf("%d:%d", productID, *variantID)
}

// mockInventoryRepository 内存库存仓储。
// LockTx 返回副本、SaveTx 写回，模拟数据库的读改写行为。
type mockInventoryRepository struct {
	byKey  map[string]*domain.Inventory
	logs   []*domain.InventoryLog
	nextID int64

	saveErr   error
	createErr error
}

func newMockInventoryRepository() *mockInventoryRepository {
	return &mockInventoryRepository{
		byKey:  make(map[string]*domain.Inventory),
		nextID: 1,
	}
}

func (m *mockInventoryRepository) seed(inv *domain.Inventory) *domain.Inventory {
	if inv.ID == 0 {
		inv.ID = m.nextID
		m.nextID++
	}
	m.byKey[invKey(inv.ProductID, inv.VariantID)] = inv
	return inv
}

func (m *mockInventoryRepository) LockTx(tx *sql.Tx, productID int64, variantID *int64) (*domain.Inventory, error) {
	inv, ok := m.byKey[invKey(productID, variantID)]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInventoryRepository) CreateTx(tx *sql.Tx, inv *domain.Inventory) error {
	if m.createErr != nil {
		return m.createErr
	}
	inv.ID = m.nextID
	m.nextID++
	cp := *inv
	m.byKey[invKey(inv.ProductID, inv.VariantID)] = &cp
	return nil
}

func (m *mockInventoryRepository) SaveTx(tx *sql.Tx, inv *domain.Inventory) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *inv
	m.byKey[invKey(inv.ProductID, inv.VariantID)] = &cp
	return nil
}

func (m *mockInventoryRepository) AppendLogTx(tx *sql.Tx, log *domain.InventoryLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockInventoryRepository) GetByKey(productID int64, variantID *int64) (*domain.Inventory, error) {
	return m.LockTx(nil, productID, variantID)
}

func (m *mockInventoryRepository) GetByID(id int64) (*domain.Inventory, error) {
	for _, inv := range m.byKey {
		if inv.ID == id {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockInventoryRepository) ListLogs(req *domain.InventoryLogListRequest) ([]*domain.InventoryLog, int64, error) {
	var result []*domain.InventoryLog
	for _, log := range m.logs {
		if log.InventoryID == req.InventoryID {
			result = append(result, log)
		}
	}
	return result, int64(len(result)), nil
}

// ListLowStockAfter 与SQL实现保持同一谓词：总量（而非可售量）不超过阈值
func (m *mockInventoryRepository) ListLowStockAfter(afterID int64, limit int) ([]*domain.Inventory, error) {
	var result []*domain.Inventory
	for _, inv := range m.byKey {
		if inv.ID > afterID && inv.Quantity <= inv.LowStockThreshold {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// stock 返回当前存储的库存行，便于断言
func (m *mockInventoryRepository) stock(productID int64, variantID *int64) *domain.Inventory {
	return m.byKey[invKey(productID, variantID)]
}

// mockPublisher 记录经由发件箱发布的事件
type mockPublisher struct {
	events []*event.Event
}

func (m *mockPublisher) PublishTx(tx *sql.Tx, evt *event.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *mockPublisher) kinds() []event.Kind {
	var kinds []event.Kind
	for _, evt := range m.events {
		kinds = append(kinds, evt.Kind)
	}
	return kinds
}

// mockOrderRepository 内存订单仓储
type mockOrderRepository struct {
	orders map[int64]*domain.Order
	items  map[int64][]*domain.OrderItem
	nextID int64

	// 剩余的订单号唯一键冲突次数
	dupRemaining int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders: make(map[int64]*domain.Order),
		items:  make(map[int64][]*domain.OrderItem),
		nextID: 1,
	}
}

func (m *mockOrderRepository) CreateTx(tx *sql.Tx, order *domain.Order) error {
	if m.dupRemaining > 0 {
		m.dupRemaining--
		return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	}
	order.ID = m.nextID
	m.nextID++
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepository) CreateItemTx(tx *sql.Tx, item *domain.OrderItem) error {
	item.ID = int64(len(m.items[item.OrderID]) + 1)
	m.items[item.OrderID] = append(m.items[item.OrderID], item)
	return nil
}

func (m *mockOrderRepository) LockTx(tx *sql.Tx, id int64) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (m *mockOrderRepository) UpdateStatusTx(tx *sql.Tx, id int64, status domain.OrderStatus, cancelledAt *time.Time) error {
	order, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d not found", id)
	}
	order.Status = status
	order.CancelledAt = cancelledAt
	return nil
}

func (m *mockOrderRepository) GetItemsTx(tx *sql.Tx, orderID int64) ([]*domain.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderRepository) GetByID(id int64) (*domain.Order, error) {
	return m.LockTx(nil, id)
}

func (m *mockOrderRepository) GetByOrderNumber(orderNumber string) (*domain.Order, error) {
	for _, order := range m.orders {
		if order.OrderNumber == orderNumber {
			cp := *order
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepository) GetItems(orderID int64) ([]*domain.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderRepository) List(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	var result []*domain.Order
	for _, order := range m.orders {
		if req.UserID != nil && order.UserID != *req.UserID {
			continue
		}
		if req.Status != nil && order.Status != *req.Status {
			continue
		}
		result = append(result, order)
	}
	return result, int64(len(result)), nil
}

func (m *mockOrderRepository) SetInvoicePath(id int64, path string) error {
	order, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d not found", id)
	}
	order.InvoicePath = &path
	return nil
}

// mockProductRepository 内存商品仓储
type mockProductRepository struct {
	products map[int64]*domain.Product
	variants map[int64]*domain.ProductVariant
	nextID   int64

	skuErr error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[int64]*domain.Product),
		variants: make(map[int64]*domain.ProductVariant),
		nextID:   1,
	}
}

func (m *mockProductRepository) seed(p *domain.Product) *domain.Product {
	if p.ID == 0 {
		p.ID = m.nextID
		m.nextID++
	}
	m.products[p.ID] = p
	return p
}

func (m *mockProductRepository) seedVariant(v *domain.ProductVariant) *domain.ProductVariant {
	if v.ID == 0 {
		v.ID = m.nextID
		m.nextID++
	}
	m.variants[v.ID] = v
	return v
}

func (m *mockProductRepository) Create(product *domain.Product) error {
	for _, p := range m.products {
		if p.SKU == product.SKU {
			return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
		}
	}
	m.seed(product)
	return nil
}

func (m *mockProductRepository) CreateTx(tx *sql.Tx, product *domain.Product) error {
	return m.Create(product)
}

func (m *mockProductRepository) GetByID(id int64) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok || product.DeletedAt != nil {
		return nil, nil
	}
	return product, nil
}

func (m *mockProductRepository) GetBySKU(sku string) (*domain.Product, error) {
	if m.skuErr != nil {
		return nil, m.skuErr
	}
	for _, p := range m.products {
		if p.SKU == sku && p.DeletedAt == nil {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepository) Update(product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return fmt.Errorf("product %d not found", product.ID)
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(id int64) error {
	product, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %d not found", id)
	}
	now := time.Now()
	product.DeletedAt = &now
	return nil
}

func (m *mockProductRepository) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	var result []*domain.Product
	for _, p := range m.products {
		if p.DeletedAt != nil {
			continue
		}
		result = append(result, p)
	}
	return result, int64(len(result)), nil
}

func (m *mockProductRepository) CreateVariant(variant *domain.ProductVariant) error {
	m.seedVariant(variant)
	return nil
}

func (m *mockProductRepository) GetVariantByID(id int64) (*domain.ProductVariant, error) {
	variant, ok := m.variants[id]
	if !ok {
		return nil, nil
	}
	return variant, nil
}

func (m *mockProductRepository) ListVariants(productID int64) ([]*domain.ProductVariant, error) {
	var result []*domain.ProductVariant
	for _, v := range m.variants {
		if v.ProductID == productID {
			result = append(result, v)
		}
	}
	return result, nil
}

// mockUserRepository 内存用户仓储
type mockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *mockUserRepository) Create(user *domain.User) error {
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByID(id int64) (*domain.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepository) GetByUsername(username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) GetByEmail(email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// mockImportRepository 内存导入批次仓储
type mockImportRepository struct {
	imports map[int64]*domain.ProductImport
	nextID  int64
}

func newMockImportRepository() *mockImportRepository {
	return &mockImportRepository{imports: make(map[int64]*domain.ProductImport), nextID: 1}
}

func (m *mockImportRepository) Create(imp *domain.ProductImport) error {
	imp.ID = m.nextID
	m.nextID++
	imp.Status = domain.ImportStatusPending
	m.imports[imp.ID] = imp
	return nil
}

func (m *mockImportRepository) GetByID(id int64) (*domain.ProductImport, error) {
	return m.imports[id], nil
}

func (m *mockImportRepository) UpdateStatus(id int64, status domain.ImportStatus) error {
	imp, ok := m.imports[id]
	if !ok {
		return fmt.Errorf("import %d not found", id)
	}
	imp.Status = status
	return nil
}

func (m *mockImportRepository) Finish(id int64, status domain.ImportStatus, imported, failed int, rowErrors []domain.ImportRowError) error {
	imp, ok := m.imports[id]
	if !ok {
		return fmt.Errorf("import %d not found", id)
	}
	imp.Status = status
	imp.Imported = imported
	imp.Failed = failed
	imp.Errors = rowErrors
	return nil
}
