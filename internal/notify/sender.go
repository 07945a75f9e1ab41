// Package notify 定义通知投递抽象。
// 具体的SMTP投递不在本服务范围内，默认实现仅记录日志，
// 生产部署替换为真实网关实现即可。
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message 一封待发送的通知
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender 通知发送器。实现必须幂等或容忍重复发送。
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// LogSender 把通知写进日志的发送器，用于开发与测试
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender 创建日志发送器
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send 记录通知内容
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.Info("notification sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
