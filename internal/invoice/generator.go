// Package invoice 定义发票生成抽象。
// PDF渲染不在本服务范围内，默认实现生成纯文本发票文件，
// 文件名取订单号，重复生成覆盖同一文件，天然幂等。
package invoice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
)

// Generator 发票生成器，返回生成文件的路径
type Generator interface {
	Generate(ctx context.Context, order *domain.Order) (string, error)
}

// FileGenerator 把发票写为本地文本文件
type FileGenerator struct {
	dir string
}

// NewFileGenerator 创建文件发票生成器
func NewFileGenerator(dir string) *FileGenerator {
	return &FileGenerator{dir: dir}
}

// Generate 渲染并落盘发票文件
func (g *FileGenerator) Generate(ctx context.Context, order *domain.Order) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create invoice dir: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INVOICE %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "Date: %s\n", order.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Customer: %d\n", order.UserID)
	fmt.Fprintf(&b, "Ship to: %s\n\n", order.ShippingAddress)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  product %d x%d @ %.2f = %.2f\n",
			item.ProductID, item.Quantity, item.Price, item.Subtotal)
	}
	fmt.Fprintf(&b, "\nSubtotal: %.2f\nTax:      %.2f\nTotal:    %.2f\n",
		order.Subtotal, order.Tax, order.TotalAmount)

	path := filepath.Join(g.dir, fmt.Sprintf("invoice-%s.txt", order.OrderNumber))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write invoice file: %w", err)
	}
	return path, nil
}
