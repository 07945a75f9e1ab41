package worker

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/mq"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
)

// mockOutboxRepository 内存发件箱，记录投递标记
type mockOutboxRepository struct {
	pending   []*repo.PendingEvent
	published []int64
	failed    map[int64]string
}

func newMockOutboxRepository(events ...*event.Event) *mockOutboxRepository {
	m := &mockOutboxRepository{failed: make(map[int64]string)}
	for i, evt := range events {
		m.pending = append(m.pending, &repo.PendingEvent{RowID: int64(i + 1), Event: evt})
	}
	return m
}

func (m *mockOutboxRepository) PublishTx(tx *sql.Tx, evt *event.Event) error {
	m.pending = append(m.pending, &repo.PendingEvent{RowID: int64(len(m.pending) + 1), Event: evt})
	return nil
}

func (m *mockOutboxRepository) FetchPending(limit int) ([]*repo.PendingEvent, error) {
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *mockOutboxRepository) MarkPublished(rowID int64) error {
	m.published = append(m.published, rowID)
	return nil
}

func (m *mockOutboxRepository) MarkFailed(rowID int64, cause string) error {
	m.failed[rowID] = cause
	return nil
}

// mockRelayPublisher 记录发布调用，可按routing key注入失败
type mockRelayPublisher struct {
	published []string
	failKinds map[string]error
}

func (m *mockRelayPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	if err, ok := m.failKinds[routingKey]; ok {
		return err
	}
	if exchange != mq.EventsExchange {
		return errors.New("unexpected exchange: " + exchange)
	}
	m.published = append(m.published, routingKey)
	return nil
}

func mustEvent(t *testing.T, kind event.Kind, aggregateID int64) *event.Event {
	t.Helper()
	evt, err := event.New(kind, "order", aggregateID, map[string]int64{"id": aggregateID})
	if err != nil {
		t.Fatal(err)
	}
	return evt
}

func TestOutboxRelayPublishesPending(t *testing.T) {
	outbox := newMockOutboxRepository(
		mustEvent(t, event.KindOrderCreated, 1),
		mustEvent(t, event.KindOrderCancelled, 2),
	)
	pub := &mockRelayPublisher{}
	relay := NewOutboxRelay(outbox, pub, zap.NewNop(), 0, 10)

	if err := relay.relayOnce(context.Background()); err != nil {
		t.Fatalf("relayOnce() error = %v", err)
	}

	if len(pub.published) != 2 || pub.published[0] != "order_created" || pub.published[1] != "order_cancelled" {
		t.Errorf("published routing keys = %v, want event kinds in outbox order", pub.published)
	}
	if len(outbox.published) != 2 || outbox.published[0] != 1 || outbox.published[1] != 2 {
		t.Errorf("marked published = %v, want [1 2]", outbox.published)
	}
	if len(outbox.failed) != 0 {
		t.Errorf("marked failed = %v, want none", outbox.failed)
	}
}

// 单条投递失败只记账，不影响同批其余事件
func TestOutboxRelayFailureKeepsGoing(t *testing.T) {
	outbox := newMockOutboxRepository(
		mustEvent(t, event.KindOrderCreated, 1),
		mustEvent(t, event.KindLowStockDetected, 2),
		mustEvent(t, event.KindOrderCreated, 3),
	)
	pub := &mockRelayPublisher{failKinds: map[string]error{"low_stock_detected": errors.New("broker unavailable")}}
	relay := NewOutboxRelay(outbox, pub, zap.NewNop(), 0, 10)

	if err := relay.relayOnce(context.Background()); err != nil {
		t.Fatalf("relayOnce() error = %v", err)
	}

	if len(outbox.published) != 2 {
		t.Errorf("marked published = %v, want rows 1 and 3", outbox.published)
	}
	if cause, ok := outbox.failed[2]; !ok || cause != "broker unavailable" {
		t.Errorf("failed[2] = %q, %v, want recorded cause", cause, ok)
	}
}

func TestOutboxRelayRespectsBatchSize(t *testing.T) {
	outbox := newMockOutboxRepository(
		mustEvent(t, event.KindOrderCreated, 1),
		mustEvent(t, event.KindOrderCreated, 2),
		mustEvent(t, event.KindOrderCreated, 3),
	)
	pub := &mockRelayPublisher{}
	relay := NewOutboxRelay(outbox, pub, zap.NewNop(), 0, 2)

	if err := relay.relayOnce(context.Background()); err != nil {
		t.Fatalf("relayOnce() error = %v", err)
	}
	if len(pub.published) != 2 {
		t.Errorf("published = %d events, want batch limit 2", len(pub.published))
	}
}
