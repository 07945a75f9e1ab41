package repo

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// OrderRepository 定义订单数据访问接口
type OrderRepository interface {
	// CreateTx 在事务内创建订单头并回填自增ID
	CreateTx(tx *sql.Tx, order *domain.Order) error
	// CreateItemTx 在事务内创建订单行项目
	CreateItemTx(tx *sql.Tx, item *domain.OrderItem) error
	// LockTx 以 SELECT ... FOR UPDATE 锁定订单行；不存在时返回 nil
	LockTx(tx *sql.Tx, id int64) (*domain.Order, error)
	// UpdateStatusTx 在事务内更新订单状态，cancelled 状态时写入取消时间
	UpdateStatusTx(tx *sql.Tx, id int64, status domain.OrderStatus, cancelledAt *time.Time) error
	// GetItemsTx 在事务内读取订单行项目
	GetItemsTx(tx *sql.Tx, orderID int64) ([]*domain.OrderItem, error)

	GetByID(id int64) (*domain.Order, error)
	GetByOrderNumber(orderNumber string) (*domain.Order, error)
	GetItems(orderID int64) ([]*domain.OrderItem, error)
	List(req *domain.OrderListRequest) ([]*domain.Order, int64, error)
	SetInvoicePath(id int64, path string) error
}

// orderRepo 是 OrderRepository 接口的数据库实现
type orderRepo struct {
	db *database.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *database.DB) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_number, user_id, status, subtotal, tax, total_amount,
	shipping_address, notes, cancelled_at, invoice_path, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	var status string
	var notes, invoicePath sql.NullString
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&status,
		&order.Subtotal,
		&order.Tax,
		&order.TotalAmount,
		&order.ShippingAddress,
		&notes,
		&order.CancelledAt,
		&invoicePath,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)
	order.Notes = notes.String
	if invoicePath.Valid {
		order.InvoicePath = &invoicePath.String
	}
	return order, nil
}

// CreateTx 创建订单头。order_number 上有唯一索引，
// 冲突时返回的错误交由服务层识别并重新生成单号。
func (r *orderRepo) CreateTx(tx *sql.Tx, order *domain.Order) error {
	query := `
		INSERT INTO orders (order_number, user_id, status, subtotal, tax, total_amount, shipping_address, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		order.OrderNumber,
		order.UserID,
		string(order.Status),
		order.Subtotal,
		order.Tax,
		order.TotalAmount,
		order.ShippingAddress,
		order.Notes,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	order.ID = id
	return nil
}

// CreateItemTx 创建订单行项目并回填自增ID
func (r *orderRepo) CreateItemTx(tx *sql.Tx, item *domain.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, variant_id, quantity, price, subtotal)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		item.OrderID,
		item.ProductID,
		item.VariantID,
		item.Quantity,
		item.Price,
		item.Subtotal,
	)
	if err != nil {
		return fmt.Errorf("create order item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	item.ID = id
	return nil
}

// LockTx 锁定订单行直到事务结束，状态流转必须在持锁后校验
func (r *orderRepo) LockTx(tx *sql.Tx, id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`

	order, err := scanOrder(tx.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

// UpdateStatusTx 更新订单状态
func (r *orderRepo) UpdateStatusTx(tx *sql.Tx, id int64, status domain.OrderStatus, cancelledAt *time.Time) error {
	query := `UPDATE orders SET status = ?, cancelled_at = ? WHERE id = ?`

	if _, err := tx.Exec(query, string(status), cancelledAt, id); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// GetItemsTx 在事务内读取订单行项目
func (r *orderRepo) GetItemsTx(tx *sql.Tx, orderID int64) ([]*domain.OrderItem, error) {
	rows, err := tx.Query(orderItemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return collectOrderItems(rows)
}

// GetByID 根据ID查询订单（含行项目）；不存在时返回 nil
func (r *orderRepo) GetByID(id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	order.Items, err = r.GetItems(order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetByOrderNumber 根据订单号查询订单（含行项目）；不存在时返回 nil
func (r *orderRepo) GetByOrderNumber(orderNumber string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ?`

	order, err := scanOrder(r.db.QueryRow(query, orderNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by number: %w", err)
	}

	order.Items, err = r.GetItems(order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

const orderItemsQuery = `
	SELECT id, order_id, product_id, variant_id, quantity, price, subtotal
	FROM order_items
	WHERE order_id = ?
	ORDER BY id
`

func collectOrderItems(rows *sql.Rows) ([]*domain.OrderItem, error) {
	defer rows.Close()

	var items []*domain.OrderItem
	for rows.Next() {
		item := &domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.Price,
			&item.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

// GetItems 读取订单的行项目
func (r *orderRepo) GetItems(orderID int64) ([]*domain.OrderItem, error) {
	rows, err := r.db.Query(orderItemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return collectOrderItems(rows)
}

// List 按过滤条件分页查询订单，按创建时间倒序。不加载行项目。
func (r *orderRepo) List(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	var conds []string
	var args []any

	if req.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *req.UserID)
	}
	if req.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*req.Status))
	}
	if req.FromDate != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *req.FromDate)
	}
	if req.ToDate != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *req.ToDate)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (req.Page - 1) * req.PageSize
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, req.PageSize, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, total, nil
}

// SetInvoicePath 记录订单发票文件路径
func (r *orderRepo) SetInvoicePath(id int64, path string) error {
	query := `UPDATE orders SET invoice_path = ? WHERE id = ?`

	if _, err := r.db.Exec(query, path, id); err != nil {
		return fmt.Errorf("set invoice path: %w", err)
	}
	return nil
}
