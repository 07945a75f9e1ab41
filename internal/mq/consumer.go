package mq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DeliveryHandler 处理一条投递。返回错误时消息nack并重新入队。
type DeliveryHandler func(ctx context.Context, d amqp.Delivery) error

// Consumer 手动应答模式的消费者
type Consumer struct {
	conn     *Connection
	logger   *zap.Logger
	queue    string
	prefetch int
}

// NewConsumer 创建消费者
func NewConsumer(conn *Connection, queue string, prefetch int, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    queue,
		prefetch: prefetch,
	}
}

// Run 持续消费直到ctx取消。通道断开后自动重新订阅。
func (c *Consumer) Run(ctx context.Context, handler DeliveryHandler) error {
	for {
		if err := c.consumeOnce(ctx, handler); err != nil {
			c.logger.Warn("consumer loop interrupted",
				zap.String("queue", c.queue),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, handler DeliveryHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("consuming", zap.String("queue", c.queue), zap.Int("prefetch", c.prefetch))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil // 通道关闭，外层重连
			}
			if err := handler(ctx, d); err != nil {
				c.logger.Error("message handling failed, requeueing",
					zap.String("queue", c.queue),
					zap.Uint64("delivery_tag", d.DeliveryTag),
					zap.Error(err),
				)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
