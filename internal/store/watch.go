package store

import (
	"context"
	"sync"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

// watchHub fans full per-user event lists out to subscribers. Each subscriber
// holds at most one pending list; a newer list replaces an unread one.
type watchHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*watcher
	nextID      int64
}

type watcher struct {
	id     int64
	userID string
	mu     sync.Mutex
	closed bool
	stream chan []events.HealthEvent
	done   chan struct{}
	once   sync.Once
}

func newWatchHub() *watchHub {
	return &watchHub{
		subscribers: make(map[string]map[int64]*watcher),
	}
}

func (h *watchHub) subscribe(ctx context.Context, userID string) (*watcher, func()) {
	h.mu.Lock()
	h.nextID++
	subscriber := &watcher{
		id:     h.nextID,
		userID: userID,
		stream: make(chan []events.HealthEvent, 1),
		done:   make(chan struct{}),
	}
	if _, ok := h.subscribers[userID]; !ok {
		h.subscribers[userID] = make(map[int64]*watcher)
	}
	h.subscribers[userID][subscriber.id] = subscriber
	h.mu.Unlock()

	cleanup := func() {
		subscriber.once.Do(func() {
			h.unregister(subscriber)
			subscriber.mu.Lock()
			subscriber.closed = true
			close(subscriber.stream)
			subscriber.mu.Unlock()
			close(subscriber.done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-subscriber.done:
		}
	}()
	return subscriber, cleanup
}

func (h *watchHub) unregister(subscriber *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subscribers := h.subscribers[subscriber.userID]
	if subscribers == nil {
		return
	}
	delete(subscribers, subscriber.id)
	if len(subscribers) == 0 {
		delete(h.subscribers, subscriber.userID)
	}
}

func (h *watchHub) hasSubscribers(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID]) > 0
}

func (h *watchHub) publish(userID string, list []events.HealthEvent) {
	h.mu.RLock()
	subscribers := h.subscribers[userID]
	copies := make([]*watcher, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	h.mu.RUnlock()

	for _, subscriber := range copies {
		subscriber.offer(cloneList(list))
	}
}

func (w *watcher) offer(list []events.HealthEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case <-w.stream:
	default:
	}
	w.stream <- list
}

func cloneList(list []events.HealthEvent) []events.HealthEvent {
	copied := make([]events.HealthEvent, len(list))
	for index, event := range list {
		copied[index] = event.Clone()
	}
	return copied
}
