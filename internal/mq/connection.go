// Package mq 提供RabbitMQ连接管理、确认模式生产者与手动应答消费者。
package mq

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
)

// 事件交换机与队列拓扑
const (
	EventsExchange = "shop.events"     // topic交换机，routing key为事件种类
	EventsQueue    = "shop.events.all" // 工作进程的事件队列，绑定全部事件
	ImportQueue    = "shop.imports"    // CSV导入任务队列，走默认交换机
)

// ImportJob CSV导入任务消息，API端入队，工作进程消费
type ImportJob struct {
	ImportID int64 `json:"import_id"`
}

// Connection 管理到RabbitMQ的单个连接。
// 连接断开后按固定间隔自动重连，通道按需创建。
type Connection struct {
	url    string
	logger *zap.Logger

	mu     sync.RWMutex
	conn   *amqp.Connection
	closed bool
}

// Dial 建立RabbitMQ连接并声明拓扑
func Dial(cfg *config.MQConfig, logger *zap.Logger) (*Connection, error) {
	c := &Connection{
		url: fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.VHost),
		logger: logger,
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	ch.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.watch(conn)

	c.logger.Info("rabbitmq connected")
	return nil
}

// declareTopology 声明交换机与队列。声明是幂等的，生产者与消费者各自执行一遍。
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", EventsExchange, err)
	}
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", EventsQueue, err)
	}
	if err := ch.QueueBind(EventsQueue, "#", EventsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", EventsQueue, err)
	}
	if _, err := ch.QueueDeclare(ImportQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", ImportQueue, err)
	}
	return nil
}

// watch 监听连接关闭并自动重连
func (c *Connection) watch(conn *amqp.Connection) {
	err := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if err == nil {
		return // 主动关闭
	}

	c.logger.Warn("rabbitmq connection lost", zap.Error(err))

	for {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		if err := c.connect(); err != nil {
			c.logger.Error("rabbitmq reconnect failed", zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}
		return
	}
}

// Channel 打开一个新通道
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("rabbitmq connection is not available")
	}
	return conn.Channel()
}

// Close 关闭连接，停止自动重连
func (c *Connection) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		return conn.Close()
	}
	return nil
}
