package repo

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
)

// PendingEvent 表示一条待投递的发件箱记录
type PendingEvent struct {
	RowID    int64
	Attempts int
	Event    *event.Event
}

// OutboxRepository 定义事务发件箱的数据访问接口。
// 事件与业务变更写入同一事务，事务回滚时事件一并消失，
// 投递由中继进程在事务提交之后异步完成。
type OutboxRepository interface {
	event.Publisher
	// FetchPending 按写入顺序返回未投递的事件
	FetchPending(limit int) ([]*PendingEvent, error)
	// MarkPublished 标记事件已投递成功
	MarkPublished(rowID int64) error
	// MarkFailed 累计失败次数并记录最近一次错误
	MarkFailed(rowID int64, cause string) error
}

// outboxRepo 是 OutboxRepository 接口的数据库实现
type outboxRepo struct {
	db *database.DB
}

// NewOutboxRepository 创建发件箱仓储实例
func NewOutboxRepository(db *database.DB) OutboxRepository {
	return &outboxRepo{db: db}
}

// PublishTx 在业务事务内落盘一条事件
func (r *outboxRepo) PublishTx(tx *sql.Tx, evt *event.Event) error {
	query := `
		INSERT INTO outbox_events (event_id, kind, aggregate_type, aggregate_id, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		evt.ID,
		string(evt.Kind),
		evt.AggregateType,
		evt.AggregateID,
		[]byte(evt.Payload),
		evt.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("publish outbox event: %w", err)
	}
	return nil
}

// FetchPending 返回未投递的事件，按自增ID升序保证同聚合内的先后次序
func (r *outboxRepo) FetchPending(limit int) ([]*PendingEvent, error) {
	query := `
		SELECT id, event_id, kind, aggregate_type, aggregate_id, payload, occurred_at, attempts
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	var pending []*PendingEvent
	for rows.Next() {
		p := &PendingEvent{Event: &event.Event{}}
		var kind string
		var payload []byte
		err := rows.Scan(
			&p.RowID,
			&p.Event.ID,
			&kind,
			&p.Event.AggregateType,
			&p.Event.AggregateID,
			&payload,
			&p.Event.OccurredAt,
			&p.Attempts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		p.Event.Kind = event.Kind(kind)
		p.Event.Payload = payload
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}

	return pending, nil
}

// MarkPublished 标记事件已投递成功
func (r *outboxRepo) MarkPublished(rowID int64) error {
	query := `UPDATE outbox_events SET published_at = ? WHERE id = ?`

	if _, err := r.db.Exec(query, time.Now(), rowID); err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	return nil
}

// MarkFailed 累计失败次数，事件留在队列中等待下一轮投递
func (r *outboxRepo) MarkFailed(rowID int64, cause string) error {
	query := `UPDATE outbox_events SET attempts = attempts + 1, last_error = ? WHERE id = ?`

	if _, err := r.db.Exec(query, cause, rowID); err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}
