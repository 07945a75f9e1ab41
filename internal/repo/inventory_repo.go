// Package repo 提供数据访问层实现，负责与数据库交互。
// 仓储模式（Repository Pattern）将数据访问逻辑与业务逻辑分离，
// 使得业务逻辑不依赖于具体的数据存储实现。
package repo

import (
	"database/sql"
	"fmt"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// InventoryRepository 定义库存数据访问接口。
// 所有带 Tx 后缀的方法必须在调用方开启的事务内执行，
// 库存台账的所有变更都要求先通过 LockTx 取得行锁。
type InventoryRepository interface {
	// LockTx 以 SELECT ... FOR UPDATE 锁定并返回库存行；不存在时返回 nil。
	LockTx(tx *sql.Tx, productID int64, variantID *int64) (*domain.Inventory, error)
	// CreateTx 在事务内创建库存记录
	CreateTx(tx *sql.Tx, inv *domain.Inventory) error
	// SaveTx 在事务内持久化 quantity/reserved/low_stock_threshold
	SaveTx(tx *sql.Tx, inv *domain.Inventory) error
	// AppendLogTx 在事务内追加一条库存流水
	AppendLogTx(tx *sql.Tx, log *domain.InventoryLog) error

	GetByKey(productID int64, variantID *int64) (*domain.Inventory, error)
	GetByID(id int64) (*domain.Inventory, error)
	ListLogs(req *domain.InventoryLogListRequest) ([]*domain.InventoryLog, int64, error)
	// ListLowStockAfter 按主键游标分页返回在售商品中已达低库存线的库存行
	ListLowStockAfter(afterID int64, limit int) ([]*domain.Inventory, error)
}

// inventoryRepo 是 InventoryRepository 接口的数据库实现
type inventoryRepo struct {
	db *database.DB
}

// NewInventoryRepository 创建库存仓储实例
func NewInventoryRepository(db *database.DB) InventoryRepository {
	return &inventoryRepo{db: db}
}

const inventoryColumns = `id, product_id, variant_id, quantity, reserved, low_stock_threshold, created_at, updated_at`

func scanInventory(row interface{ Scan(...any) error }) (*domain.Inventory, error) {
	inv := &domain.Inventory{}
	err := row.Scan(
		&inv.ID,
		&inv.ProductID,
		&inv.VariantID,
		&inv.Quantity,
		&inv.Reserved,
		&inv.LowStockThreshold,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// LockTx 锁定库存行直到事务结束。
// variant_id 使用 MySQL 的空值安全比较 <=>，nil 表示无规格商品的库存行。
func (r *inventoryRepo) LockTx(tx *sql.Tx, productID int64, variantID *int64) (*domain.Inventory, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventories
		WHERE product_id = ? AND variant_id <=> ?
		FOR UPDATE
	`

	inv, err := scanInventory(tx.QueryRow(query, productID, variantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock inventory: %w", err)
	}
	return inv, nil
}

// CreateTx 创建库存记录并回填自增ID
func (r *inventoryRepo) CreateTx(tx *sql.Tx, inv *domain.Inventory) error {
	query := `
		INSERT INTO inventories (product_id, variant_id, quantity, reserved, low_stock_threshold)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		inv.ProductID,
		inv.VariantID,
		inv.Quantity,
		inv.Reserved,
		inv.LowStockThreshold,
	)
	if err != nil {
		return fmt.Errorf("create inventory: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	inv.ID = id
	return nil
}

// SaveTx 持久化库存数量字段。调用方必须已通过 LockTx 持有行锁。
func (r *inventoryRepo) SaveTx(tx *sql.Tx, inv *domain.Inventory) error {
	query := `
		UPDATE inventories
		SET quantity = ?, reserved = ?, low_stock_threshold = ?
		WHERE id = ?
	`

	if _, err := tx.Exec(query, inv.Quantity, inv.Reserved, inv.LowStockThreshold, inv.ID); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	return nil
}

// AppendLogTx 追加库存流水。流水与库存变更同属一个事务，保证台账一致。
func (r *inventoryRepo) AppendLogTx(tx *sql.Tx, log *domain.InventoryLog) error {
	query := `
		INSERT INTO inventory_logs
			(inventory_id, type, quantity_before, quantity_after, quantity_changed, reference_kind, reference_id, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var refKind sql.NullString
	var refID sql.NullInt64
	if !log.Reference.IsZero() {
		refKind = sql.NullString{String: string(log.Reference.Kind), Valid: true}
		refID = sql.NullInt64{Int64: log.Reference.ID, Valid: true}
	}

	result, err := tx.Exec(query,
		log.InventoryID,
		string(log.Type),
		log.QuantityBefore,
		log.QuantityAfter,
		log.QuantityChanged,
		refKind,
		refID,
		log.Notes,
	)
	if err != nil {
		return fmt.Errorf("append inventory log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	log.ID = id
	return nil
}

// GetByKey 根据商品与规格查询库存；不存在时返回 nil
func (r *inventoryRepo) GetByKey(productID int64, variantID *int64) (*domain.Inventory, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventories
		WHERE product_id = ? AND variant_id <=> ?
	`

	inv, err := scanInventory(r.db.QueryRow(query, productID, variantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory by key: %w", err)
	}
	return inv, nil
}

// GetByID 根据ID查询库存；不存在时返回 nil
func (r *inventoryRepo) GetByID(id int64) (*domain.Inventory, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventories
		WHERE id = ?
	`

	inv, err := scanInventory(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory by id: %w", err)
	}
	return inv, nil
}

// ListLogs 分页查询某条库存的流水，按时间倒序
func (r *inventoryRepo) ListLogs(req *domain.InventoryLogListRequest) ([]*domain.InventoryLog, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM inventory_logs WHERE inventory_id = ?`
	if err := r.db.QueryRow(countQuery, req.InventoryID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inventory logs: %w", err)
	}

	offset := (req.Page - 1) * req.PageSize
	query := `
		SELECT id, inventory_id, type, quantity_before, quantity_after, quantity_changed,
		       reference_kind, reference_id, notes, created_at
		FROM inventory_logs
		WHERE inventory_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Query(query, req.InventoryID, req.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.InventoryLog
	for rows.Next() {
		log := &domain.InventoryLog{}
		var logType string
		var refKind sql.NullString
		var refID sql.NullInt64
		var notes sql.NullString
		err := rows.Scan(
			&log.ID,
			&log.InventoryID,
			&logType,
			&log.QuantityBefore,
			&log.QuantityAfter,
			&log.QuantityChanged,
			&refKind,
			&refID,
			&notes,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan inventory log: %w", err)
		}
		log.Type = domain.InventoryLogType(logType)
		if refKind.Valid {
			log.Reference = domain.Reference{Kind: domain.ReferenceKind(refKind.String), ID: refID.Int64}
		}
		log.Notes = notes.String
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate inventory logs: %w", err)
	}

	return logs, total, nil
}

// ListLowStockAfter 返回在售商品中 quantity <= low_stock_threshold 的库存行。
// 使用主键游标而非 OFFSET 分页，全表巡检时代价稳定。
func (r *inventoryRepo) ListLowStockAfter(afterID int64, limit int) ([]*domain.Inventory, error) {
	query := `
		SELECT i.id, i.product_id, i.variant_id, i.quantity, i.reserved, i.low_stock_threshold,
		       i.created_at, i.updated_at
		FROM inventories i
		JOIN products p ON p.id = i.product_id
		WHERE i.quantity <= i.low_stock_threshold
		  AND p.is_active = TRUE AND p.deleted_at IS NULL
		  AND i.id > ?
		ORDER BY i.id
		LIMIT ?
	`

	rows, err := r.db.Query(query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list low stock inventories: %w", err)
	}
	defer rows.Close()

	var invs []*domain.Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventories: %w", err)
	}

	return invs, nil
}
