package domain

import "time"

// ImportStatus 商品导入批次状态
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// ProductImport 表示一次CSV商品导入批次。
// 库存流水通过 import 类型的关联指回该批次。
type ProductImport struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	FilePath  string           `json:"file_path"`
	Status    ImportStatus     `json:"status"`
	Imported  int              `json:"imported"`
	Failed    int              `json:"failed"`
	Errors    []ImportRowError `json:"errors,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ImportRowError 记录单行导入失败的原因
type ImportRowError struct {
	Row    int      `json:"row"` // 数据行号，表头为第1行
	Errors []string `json:"errors"`
}
