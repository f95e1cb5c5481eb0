package calendar

import (
	"context"
	"sync"
)

// projectionHub holds at most one pending projection per watcher; a newer
// projection replaces an unread one.
type projectionHub struct {
	mu       sync.Mutex
	watchers map[chan Projection]struct{}
	closed   bool
}

func newProjectionHub() *projectionHub {
	return &projectionHub{watchers: make(map[chan Projection]struct{})}
}

func (h *projectionHub) subscribe(ctx context.Context) (chan Projection, func()) {
	stream := make(chan Projection, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(stream)
		return stream, func() {}
	}
	h.watchers[stream] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.watchers[stream]; ok {
				delete(h.watchers, stream)
				close(stream)
			}
			h.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-done:
		}
	}()
	return stream, release
}

func (h *projectionHub) publish(projection Projection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for stream := range h.watchers {
		replaceLatest(stream, cloneProjection(projection))
	}
}

func (h *projectionHub) offerTo(stream chan Projection, projection Projection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[stream]; ok {
		replaceLatest(stream, projection)
	}
}

func (h *projectionHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for stream := range h.watchers {
		delete(h.watchers, stream)
		close(stream)
	}
}

// replaceLatest must run with the hub lock held.
func replaceLatest(stream chan Projection, projection Projection) {
	select {
	case <-stream:
	default:
	}
	stream <- projection
}
