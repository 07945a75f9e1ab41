package event

import (
	"context"
	"errors"
	"testing"
)

func recorder(name string, calls *[]string, err error) Handler {
	return HandlerFunc{
		HandlerName: name,
		Fn: func(ctx context.Context, evt *Event) error {
			*calls = append(*calls, name)
			return err
		},
	}
}

func TestRegistryDispatchOrder(t *testing.T) {
	var calls []string
	reg := NewRegistry(nil)
	reg.Register(KindOrderCreated, recorder("first", &calls, nil))
	reg.Register(KindOrderCreated, recorder("second", &calls, nil))
	reg.Register(KindOrderCancelled, recorder("other", &calls, nil))

	evt, err := New(KindOrderCreated, "order", 1, map[string]int64{"order_id": 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := reg.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v, want registration order for the matching kind only", calls)
	}
}

func TestRegistryDispatchFailFast(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	reg := NewRegistry(nil)
	reg.Register(KindLowStockDetected,
		recorder("ok", &calls, nil),
		recorder("fails", &calls, boom),
		recorder("never", &calls, nil),
	)

	evt, _ := New(KindLowStockDetected, "inventory", 5, nil)
	err := reg.Dispatch(context.Background(), evt)
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want wrapped boom", err)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, handlers after the failure must not run", calls)
	}
}

func TestRegistryDispatchUnknownKind(t *testing.T) {
	reg := NewRegistry(nil)
	evt, _ := New(Kind("unknown_kind"), "order", 1, nil)
	if err := reg.Dispatch(context.Background(), evt); err != nil {
		t.Errorf("Dispatch() for unregistered kind: error = %v, want nil", err)
	}
}

func TestEventNew(t *testing.T) {
	evt, err := New(KindOrderCreated, "order", 42, OrderCreatedPayload{OrderID: 42, OrderNumber: "ORD-1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if evt.ID == "" || evt.OccurredAt.IsZero() {
		t.Errorf("event = {id: %q, occurred_at: %v}, want populated", evt.ID, evt.OccurredAt)
	}
	if evt.AggregateType != "order" || evt.AggregateID != 42 {
		t.Errorf("aggregate = {%s, %d}, want {order, 42}", evt.AggregateType, evt.AggregateID)
	}
}
