// Package bus is a small in-process publish/subscribe hub keyed by topic.
//
// The keyword store publishes on every local write and on every change it
// observes in the shared medium; dashboards, the viewer hub and the engine
// subscribe.
package bus

import (
	"log/slog"
	"sync"
)

// Topics used across kwgraph.
const (
	TopicKeywords    = "keywords"
	TopicConnections = "connections"
	TopicUsage       = "usage"
)

// Event is delivered to subscribers.
type Event struct {
	Topic string
	// Remote is true when the change was observed in the shared medium
	// rather than written by this process.
	Remote bool
	Data   any
}

// Handler receives published events.
type Handler func(Event)

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
	logger *slog.Logger
}

type subscription struct {
	id int
	fn Handler
}

// New creates an empty bus. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[string][]subscription), logger: logger}
}

// Subscribe registers fn for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[topic]
			for i, s := range list {
				if s.id == id {
					b.subs[topic] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber of ev.Topic. A panicking handler
// is logged and does not stop delivery to the others.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[ev.Topic]...)
	b.mu.RUnlock()

	for _, s := range list {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked", "topic", ev.Topic, "panic", r)
		}
	}()
	s.fn(ev)
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
