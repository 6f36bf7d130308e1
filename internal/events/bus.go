package events

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"unshub/pkg/logging"
)

// queueWarnDepth is the per-subscription backlog size at which the bus
// starts logging warnings about a slow subscriber.
const queueWarnDepth = 1024

// Bus is an in-process publish/subscribe hub. Events are routed by their
// concrete Go type: a subscription made with Subscribe[E] receives every
// value of type E passed to Publish.
//
// Publish never blocks on subscribers. Each subscription owns a FIFO queue
// drained by its own dispatcher goroutine, so a slow handler delays only
// its own backlog and per-subscription delivery order matches publish
// order. Queues grow without bound; sustained backlog is reported through
// warning logs rather than dropped events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type][]*subscription
	closed bool
	wg     sync.WaitGroup
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[reflect.Type][]*subscription),
	}
}

// Subscription is a handle to an active registration on a Bus.
type Subscription struct {
	sub *subscription
}

// Cancel removes the registration and stops its dispatcher. Events still
// queued for the subscription are discarded. Cancel is idempotent and safe
// to call on a nil Subscription.
func (s *Subscription) Cancel() {
	if s == nil || s.sub == nil {
		return
	}
	s.sub.cancel()
}

type subscription struct {
	bus     *Bus
	evtType reflect.Type
	handler func(interface{})

	qmu      sync.Mutex
	queue    []interface{}
	canceled bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// Subscribe registers handler for every published event of type E and
// starts a dispatcher for it. The same function may be subscribed multiple
// times; each call is an independent registration with its own queue.
// A nil handler is ignored and returns a nil Subscription.
func Subscribe[E any](b *Bus, handler func(E)) *Subscription {
	evtType := typeOf[E]()
	if handler == nil {
		logging.Warn("EventBus", "Ignoring nil handler for %s", evtType)
		return nil
	}

	sub := &subscription{
		bus:     b,
		evtType: evtType,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	sub.handler = func(evt interface{}) {
		handler(evt.(E))
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		logging.Warn("EventBus", "Ignoring subscription for %s on closed bus", evtType)
		return nil
	}
	b.subs[evtType] = append(b.subs[evtType], sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go sub.run()
	return &Subscription{sub: sub}
}

// SubscriberCount reports how many subscriptions are registered for E.
func SubscriberCount[E any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[typeOf[E]()])
}

// Publish hands evt to every subscription registered for its concrete
// type and returns once the event is queued everywhere. Delivery happens
// asynchronously on the dispatcher goroutines; subscriptions added after
// Publish returns do not receive the event.
func (b *Bus) Publish(evt interface{}) {
	if evt == nil {
		logging.Warn("EventBus", "Dropping nil event")
		return
	}
	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		logging.Warn("EventBus", "Dropping %s published after close", evtType)
		return
	}
	registered := b.subs[evtType]
	snapshot := make([]*subscription, len(registered))
	copy(snapshot, registered)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.enqueue(evt)
	}
}

// Close cancels every subscription, discards queued events and waits for
// the dispatchers to finish or for ctx to expire. The bus accepts no new
// subscriptions or events afterwards.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*subscription
	for _, list := range b.subs {
		all = append(all, list...)
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.cancel()
	}

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus close: %w", ctx.Err())
	}
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.evtType]
	for i, candidate := range list {
		if candidate == sub {
			b.subs[sub.evtType] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.evtType]) == 0 {
		delete(b.subs, sub.evtType)
	}
}

func (s *subscription) enqueue(evt interface{}) {
	s.qmu.Lock()
	if s.canceled {
		s.qmu.Unlock()
		return
	}
	s.queue = append(s.queue, evt)
	depth := len(s.queue)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	if depth >= queueWarnDepth && depth%queueWarnDepth == 0 {
		logging.Warn("EventBus", "Slow subscriber for %s, QueueSize=%d", s.evtType, depth)
	}
}

func (s *subscription) run() {
	defer s.bus.wg.Done()
	for {
		evt, ok := s.next()
		if !ok {
			return
		}
		s.dispatch(evt)
	}
}

// next blocks until an event is available or the subscription is canceled.
func (s *subscription) next() (interface{}, bool) {
	for {
		s.qmu.Lock()
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue = s.queue[1:]
			s.qmu.Unlock()
			return evt, true
		}
		s.qmu.Unlock()

		select {
		case <-s.wake:
		case <-s.done:
			return nil, false
		}
	}
}

// dispatch invokes the handler and contains its panics so one faulty
// subscriber cannot take down the dispatcher or other subscriptions.
func (s *subscription) dispatch(evt interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("EventBus", fmt.Errorf("%v", r), "Subscriber for %s panicked, event dropped", s.evtType)
		}
	}()
	s.handler(evt)
}

func (s *subscription) cancel() {
	s.once.Do(func() {
		s.bus.remove(s)
		s.qmu.Lock()
		s.canceled = true
		s.queue = nil
		s.qmu.Unlock()
		close(s.done)
	})
}

func typeOf[E any]() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}
