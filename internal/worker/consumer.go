package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/mq"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
)

// RunEventConsumer 消费事件队列并分发给注册表。
// 处理失败时消息重新入队，依赖处理器幂等吸收重复。
func RunEventConsumer(ctx context.Context, conn *mq.Connection, registry *event.Registry, prefetch int, logger *zap.Logger) error {
	consumer := mq.NewConsumer(conn, mq.EventsQueue, prefetch, logger)
	return consumer.Run(ctx, func(ctx context.Context, d amqp.Delivery) error {
		var evt event.Event
		if err := json.Unmarshal(d.Body, &evt); err != nil {
			// 无法解析的消息重投也不会变好，记错丢弃
			logger.Error("dropping malformed event message", zap.Error(err))
			return nil
		}
		return registry.Dispatch(ctx, &evt)
	})
}

// RunImportConsumer 消费CSV导入任务队列
func RunImportConsumer(ctx context.Context, conn *mq.Connection, products service.ProductService, logger *zap.Logger) error {
	consumer := mq.NewConsumer(conn, mq.ImportQueue, 1, logger)
	return consumer.Run(ctx, func(ctx context.Context, d amqp.Delivery) error {
		var job mq.ImportJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			logger.Error("dropping malformed import job", zap.Error(err))
			return nil
		}
		if err := products.RunImport(ctx, job.ImportID); err != nil {
			return fmt.Errorf("run import %d: %w", job.ImportID, err)
		}
		return nil
	})
}

// LowStockSweeper 周期性触发低库存巡检
type LowStockSweeper struct {
	inventory service.InventoryService
	logger    *zap.Logger
	interval  time.Duration
}

// NewLowStockSweeper 创建低库存巡检器
func NewLowStockSweeper(inventory service.InventoryService, logger *zap.Logger, interval time.Duration) *LowStockSweeper {
	return &LowStockSweeper{
		inventory: inventory,
		logger:    logger,
		interval:  interval,
	}
}

// Run 按固定间隔巡检，直到ctx取消
func (s *LowStockSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emitted, err := s.inventory.SweepLowStock(ctx)
			if err != nil {
				s.logger.Error("low stock sweep failed", zap.Error(err))
				continue
			}
			if emitted > 0 {
				s.logger.Info("low stock sweep finished", zap.Int("events", emitted))
			}
		}
	}
}
