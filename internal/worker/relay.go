// Package worker 承载后台进程的各个循环：发件箱转发、事件消费、
// CSV导入消费与低库存巡检。
package worker

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/mq"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
)

// Publisher 是发件箱转发依赖的消息发布接口，由 mq.Producer 实现
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error
}

// OutboxRelay 把已提交事务落盘的事件转发到消息队列。
// 逐条确认投递，确认成功才标记已发布，保证至少一次。
type OutboxRelay struct {
	outbox   repo.OutboxRepository
	producer Publisher
	logger   *zap.Logger
	interval time.Duration
	batch    int
}

// NewOutboxRelay 创建发件箱转发器
func NewOutboxRelay(outbox repo.OutboxRepository, producer Publisher, logger *zap.Logger, interval time.Duration, batch int) *OutboxRelay {
	return &OutboxRelay{
		outbox:   outbox,
		producer: producer,
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}

// Run 按固定间隔转发，直到ctx取消
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.relayOnce(ctx); err != nil {
				r.logger.Error("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// relayOnce 转发一批待投递事件。
// 单条失败只记账不中断，失败的事件留在队列里等下一轮。
func (r *OutboxRelay) relayOnce(ctx context.Context) error {
	pending, err := r.outbox.FetchPending(r.batch)
	if err != nil {
		return err
	}

	for _, p := range pending {
		body, err := json.Marshal(p.Event)
		if err != nil {
			r.logger.Error("event marshalling failed, skipping",
				zap.Int64("outbox_row", p.RowID), zap.Error(err))
			_ = r.outbox.MarkFailed(p.RowID, err.Error())
			continue
		}

		if err := r.producer.Publish(ctx, mq.EventsExchange, string(p.Event.Kind), body, nil); err != nil {
			r.logger.Warn("event publish failed",
				zap.Int64("outbox_row", p.RowID),
				zap.String("kind", string(p.Event.Kind)),
				zap.Error(err),
			)
			_ = r.outbox.MarkFailed(p.RowID, err.Error())
			continue
		}

		if err := r.outbox.MarkPublished(p.RowID); err != nil {
			// 已投递未标记，下一轮会重复投递，由幂等处理器吸收
			r.logger.Error("mark published failed", zap.Int64("outbox_row", p.RowID), zap.Error(err))
		}
	}
	return nil
}
