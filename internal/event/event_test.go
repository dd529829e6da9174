package event

import (
	"sync"
	"testing"
)

func TestBusDeliversToEverySubscribedTopic(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	got := map[string]int{}
	err := bus.Subscribe(func(e Event) {
		mu.Lock()
		got[e.Topic]++
		mu.Unlock()
	}, TopicTransactionCreated, TopicStockAdjusted)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.Publish(Event{Topic: TopicTransactionCreated})
	bus.Publish(Event{Topic: TopicStockAdjusted})
	bus.Publish(Event{Topic: TopicStockAdjusted})
	bus.Publish(Event{Topic: TopicCustomerChanged})
	bus.Wait()

	if got[TopicTransactionCreated] != 1 || got[TopicStockAdjusted] != 2 {
		t.Fatalf("unexpected deliveries: %v", got)
	}
	if got[TopicCustomerChanged] != 0 {
		t.Fatalf("unsubscribed topic was delivered")
	}
}

func TestPublishStampsTime(t *testing.T) {
	bus := NewBus()
	done := make(chan Event, 1)
	if err := bus.Subscribe(func(e Event) { done <- e }, TopicAuth); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	bus.Publish(Event{Topic: TopicAuth})
	bus.Wait()

	e := <-done
	if e.At.IsZero() {
		t.Fatalf("expected publish time to be set")
	}
}
