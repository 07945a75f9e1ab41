package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Producer 确认模式的消息生产者。
// 每条消息等待broker确认后才算发布成功，未确认视为失败由调用方重试。
type Producer struct {
	conn   *Connection
	logger *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewProducer 创建生产者
func NewProducer(conn *Connection, logger *zap.Logger) *Producer {
	return &Producer{conn: conn, logger: logger}
}

// channel 返回可用的确认模式通道，必要时重建
func (p *Producer) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	p.ch = ch
	return ch, nil
}

// Publish 发布一条持久化消息并等待broker确认
func (p *Producer) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		p.ch = nil // 通道可能已不可用，下次重建
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait publish confirm: %w", err)
	}
	if !ok {
		return fmt.Errorf("broker nacked message to %s/%s", exchange, routingKey)
	}
	return nil
}

// Close 关闭生产者通道
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		err := p.ch.Close()
		p.ch = nil
		return err
	}
	return nil
}
