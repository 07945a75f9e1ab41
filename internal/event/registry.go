package event

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Publisher 在业务事务内暂存事件。
// 事件与业务写入共享同一个事务：事务回滚则事件一并消失，
// 事务提交后由外部转发器异步投递。
type Publisher interface {
	PublishTx(tx *sql.Tx, evt *Event) error
}

// Handler 领域事件处理器。
// 投递为至少一次，实现必须幂等或容忍重复调用。
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt *Event) error
}

// HandlerFunc 将函数适配为 Handler
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, evt *Event) error
}

// Name 返回处理器名称
func (h HandlerFunc) Name() string { return h.HandlerName }

// Handle 执行处理函数
func (h HandlerFunc) Handle(ctx context.Context, evt *Event) error { return h.Fn(ctx, evt) }

// Registry 事件种类到处理器有序列表的显式映射。
// 注册只发生在进程启动阶段，之后只读，没有全局可变注册表。
type Registry struct {
	handlers map[Kind][]Handler
	logger   *zap.Logger
}

// NewRegistry 创建事件注册表
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[Kind][]Handler),
		logger:   logger,
	}
}

// Register 按声明顺序为事件种类追加处理器
func (r *Registry) Register(kind Kind, handlers ...Handler) {
	r.handlers[kind] = append(r.handlers[kind], handlers...)
}

// Dispatch 依次调用该事件种类的全部处理器。
// 任一处理器失败即返回错误，由消费端重新投递整个事件；
// 已成功的处理器会被重复调用，这是至少一次语义的一部分。
func (r *Registry) Dispatch(ctx context.Context, evt *Event) error {
	handlers, ok := r.handlers[evt.Kind]
	if !ok || len(handlers) == 0 {
		r.logger.Debug("no handlers for event",
			zap.String("event_id", evt.ID),
			zap.String("kind", string(evt.Kind)),
		)
		return nil
	}

	for _, h := range handlers {
		if err := h.Handle(ctx, evt); err != nil {
			r.logger.Error("event handler failed",
				zap.String("event_id", evt.ID),
				zap.String("kind", string(evt.Kind)),
				zap.String("handler", h.Name()),
				zap.Error(err),
			)
			return fmt.Errorf("handler %s: %w", h.Name(), err)
		}
		r.logger.Debug("event handler completed",
			zap.String("event_id", evt.ID),
			zap.String("kind", string(evt.Kind)),
			zap.String("handler", h.Name()),
		)
	}
	return nil
}
