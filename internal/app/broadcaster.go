package app

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/domain"
)

const defaultSubscriberBuffer = 256

// Subscription is one observer's event stream
type Subscription struct {
	id      uint64
	ch      chan domain.Event
	dropped atomic.Uint64
}

// Events returns the receive side of the subscription. It is closed on Unsubscribe.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Dropped returns how many events were evicted because the subscriber fell behind
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// offer never blocks: when the buffer is full the oldest event is evicted.
// Only called with the broadcaster lock held, so it is the sole sender.
func (s *Subscription) offer(ev domain.Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}

	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Broadcaster fans events out to every subscriber
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	logger *zap.Logger
}

// NewBroadcaster creates a broadcaster whose subscribers buffer up to buffer events
func NewBroadcaster(buffer int, logger *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new observer
func (b *Broadcaster) Subscribe() *Subscription {
	return b.subscribe(nil)
}

// SubscribeWith registers a new observer whose first event is initial.
// No other publication can slip in between.
func (b *Broadcaster) SubscribeWith(initial domain.Event) *Subscription {
	return b.subscribe(&initial)
}

func (b *Broadcaster) subscribe(initial *domain.Event) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		ch: make(chan domain.Event, b.buffer),
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub

	if initial != nil {
		stamp(initial)
		sub.offer(*initial)
	}

	b.logger.Debug("Subscriber added",
		zap.Uint64("subscriber_id", sub.id),
		zap.Int("subscribers", len(b.subs)))
	return sub
}

// Unsubscribe removes the observer and closes its channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)

	b.logger.Debug("Subscriber removed",
		zap.Uint64("subscriber_id", sub.id),
		zap.Uint64("dropped", sub.Dropped()),
		zap.Int("subscribers", len(b.subs)))
}

// Publish delivers ev to every subscriber without blocking
func (b *Broadcaster) Publish(ev domain.Event) {
	stamp(&ev)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.offer(ev)
	}
}

// SubscriberCount returns the number of live subscriptions
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unsubscribes everyone. Later subscriptions are returned already closed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	b.closed = true
}

func stamp(ev *domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
}
