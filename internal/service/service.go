package service

import (
	"context"
	"database/sql"
)

// TxRunner 提供事务执行边界，由 database.DB 实现。
// 库存与订单的每一次变更都必须在 WithinTx 内完成。
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}
