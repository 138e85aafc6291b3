package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler consumes events delivered by the bus
type Handler func(Event)

// Bus fans events out to subscribers. Delivery is at-most-once and
// best-effort: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	closed      bool
	bufferSize  int
	logger      *zap.Logger
	wg          sync.WaitGroup
}

type subscriber struct {
	name string
	ch   chan Event
}

// NewBus creates a bus whose subscribers buffer up to bufferSize events
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers handler; it runs on its own goroutine until Close
func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	sub := &subscriber{name: name, ch: make(chan Event, b.bufferSize)}
	b.subscribers = append(b.subscribers, sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range sub.ch {
			b.deliver(sub.name, handler, ev)
		}
	}()
}

func (b *Bus) deliver(name string, handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked",
				zap.String("subscriber", name),
				zap.String("type", string(ev.Type)),
				zap.Any("panic", r))
		}
	}()
	handler(ev)
}

// Publish hands ev to every subscriber without blocking
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				zap.String("subscriber", sub.name),
				zap.String("type", string(ev.Type)))
		}
	}
}

// Close stops accepting events and waits for subscribers to drain
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
