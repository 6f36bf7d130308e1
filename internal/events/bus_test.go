package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	Seq int
}

type otherEvent struct {
	Name string
}

// collect drains n events from ch or fails the test after the timeout.
func collect(t *testing.T, ch <-chan testEvent, n int, timeout time.Duration) []testEvent {
	t.Helper()
	var got []testEvent
	deadline := time.After(timeout)
	for len(got) < n {
		select {
		case evt := <-ch:
			got = append(got, evt)
		case <-deadline:
			t.Fatalf("timed out after %v waiting for %d events, got %d", timeout, n, len(got))
		}
	}
	return got
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	received := make(chan testEvent, 1)
	sub := Subscribe(bus, func(e testEvent) {
		received <- e
	})
	defer sub.Cancel()

	bus.Publish(testEvent{Seq: 42})

	got := collect(t, received, 1, time.Second)
	if got[0].Seq != 42 {
		t.Errorf("expected Seq=42, got %d", got[0].Seq)
	}
}

func TestPerSubscriberOrderingMatchesPublishOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	const n = 500
	received := make(chan testEvent, n)
	sub := Subscribe(bus, func(e testEvent) {
		received <- e
	})
	defer sub.Cancel()

	for i := 0; i < n; i++ {
		bus.Publish(testEvent{Seq: i})
	}

	got := collect(t, received, n, 5*time.Second)
	for i, evt := range got {
		if evt.Seq != i {
			t.Fatalf("event %d out of order: got Seq=%d", i, evt.Seq)
		}
	}
}

func TestEventsRoutedByConcreteType(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	testEvents := make(chan testEvent, 4)
	otherEvents := make(chan otherEvent, 4)
	Subscribe(bus, func(e testEvent) { testEvents <- e })
	Subscribe(bus, func(e otherEvent) { otherEvents <- e })

	bus.Publish(testEvent{Seq: 1})
	bus.Publish(otherEvent{Name: "x"})

	collect(t, testEvents, 1, time.Second)
	select {
	case evt := <-otherEvents:
		if evt.Name != "x" {
			t.Errorf("expected Name=x, got %s", evt.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for otherEvent")
	}

	select {
	case evt := <-testEvents:
		t.Errorf("unexpected cross-type delivery: %+v", evt)
	default:
	}
}

func TestSlowSubscriberDoesNotStallOthers(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	release := make(chan struct{})
	var slowStarted sync.Once
	started := make(chan struct{})
	Subscribe(bus, func(e testEvent) {
		slowStarted.Do(func() { close(started) })
		<-release
	})

	fast := make(chan testEvent, 10)
	Subscribe(bus, func(e testEvent) { fast <- e })

	// Publish must not block even while the slow handler is stuck.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(testEvent{Seq: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	<-started
	collect(t, fast, 10, 2*time.Second)
	close(release)
}

func TestPanickingSubscriberIsContained(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	Subscribe(bus, func(e testEvent) {
		panic("handler exploded")
	})
	healthy := make(chan testEvent, 2)
	Subscribe(bus, func(e testEvent) { healthy <- e })

	bus.Publish(testEvent{Seq: 1})
	bus.Publish(testEvent{Seq: 2})

	got := collect(t, healthy, 2, 2*time.Second)
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("healthy subscriber got wrong events: %+v", got)
	}
}

func TestSubscribeAfterPublishSeesNothing(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	bus.Publish(testEvent{Seq: 1})

	received := make(chan testEvent, 1)
	Subscribe(bus, func(e testEvent) { received <- e })

	select {
	case evt := <-received:
		t.Errorf("late subscriber received earlier event: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelRemovesRegistration(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	for i := 0; i < 5; i++ {
		sub := Subscribe(bus, func(e testEvent) {})
		sub.Cancel()
		sub.Cancel() // idempotent
	}

	if n := SubscriberCount[testEvent](bus); n != 0 {
		t.Errorf("expected 0 registrations after subscribe/cancel cycles, got %d", n)
	}

	received := make(chan testEvent, 1)
	sub := Subscribe(bus, func(e testEvent) { received <- e })
	sub.Cancel()
	bus.Publish(testEvent{Seq: 9})

	select {
	case evt := <-received:
		t.Errorf("canceled subscription received event: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNilHandlerIgnored(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	sub := Subscribe[testEvent](bus, nil)
	if sub != nil {
		t.Error("expected nil Subscription for nil handler")
	}
	sub.Cancel() // must not panic

	if n := SubscriberCount[testEvent](bus); n != 0 {
		t.Errorf("nil handler was registered, count=%d", n)
	}
}

func TestCloseStopsDeliveryAndRejectsPublish(t *testing.T) {
	bus := NewBus()

	received := make(chan testEvent, 1)
	Subscribe(bus, func(e testEvent) { received <- e })

	if err := bus.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Close(context.Background()); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	bus.Publish(testEvent{Seq: 1})
	select {
	case evt := <-received:
		t.Errorf("event delivered after close: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	if sub := Subscribe(bus, func(e testEvent) {}); sub != nil {
		t.Error("expected nil Subscription on closed bus")
	}
}

func TestConcurrentPublishersPreserveSubscriberOrderPerType(t *testing.T) {
	bus := NewBus()
	defer bus.Close(context.Background())

	const publishers = 4
	const perPublisher = 100

	var mu sync.Mutex
	var got []testEvent
	done := make(chan struct{})
	Subscribe(bus, func(e testEvent) {
		mu.Lock()
		got = append(got, e)
		if len(got) == publishers*perPublisher {
			close(done)
		}
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Publish(testEvent{Seq: p*perPublisher + i})
			}
		}(p)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out, delivered %d of %d events", len(got), publishers*perPublisher)
	}

	// Per-publisher sequences must stay in relative order.
	lastSeen := make(map[int]int)
	for _, evt := range got {
		p := evt.Seq / perPublisher
		if prev, ok := lastSeen[p]; ok && evt.Seq <= prev {
			t.Fatalf("publisher %d events reordered: %d after %d", p, evt.Seq, prev)
		}
		lastSeen[p] = evt.Seq
	}
}
