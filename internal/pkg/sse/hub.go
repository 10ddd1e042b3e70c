package sse

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/events"
)

// AllEntities subscribes to the runs of every entity.
const AllEntities = ""

// Hub fans run lifecycle events out to dashboard subscribers. It satisfies
// events.Publisher so it can sit next to the Kafka publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan events.RunEvent]struct{}
	closed      bool
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan events.RunEvent]struct{}),
	}
}

// Subscribe registers a subscriber for one entity, or AllEntities, and returns
// the event channel and its cleanup function.
func (h *Hub) Subscribe(entity string) (<-chan events.RunEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan events.RunEvent, 10)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	if h.subscribers[entity] == nil {
		h.subscribers[entity] = make(map[chan events.RunEvent]struct{})
	}
	h.subscribers[entity][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subscribers[entity][ch]; !ok {
				return
			}
			delete(h.subscribers[entity], ch)
			close(ch)
			if len(h.subscribers[entity]) == 0 {
				delete(h.subscribers, entity)
			}
		})
	}

	return ch, cleanup
}

// PublishRunEvent never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) PublishRunEvent(_ context.Context, event events.RunEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(subs map[chan events.RunEvent]struct{}) {
		for ch := range subs {
			select {
			case ch <- event:
			default:
			}
		}
	}

	deliver(h.subscribers[event.Entity])
	if event.Entity != AllEntities {
		deliver(h.subscribers[AllEntities])
	}
	return nil
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for entity, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(h.subscribers, entity)
	}
	h.closed = true
	return nil
}

// SubscriberCount returns the number of active subscribers for an entity
func (h *Hub) SubscriberCount(entity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[entity])
}
