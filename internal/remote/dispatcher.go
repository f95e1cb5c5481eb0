package remote

import (
	"context"
	"sync"
)

const snapshotBufferSize = 16

// Dispatcher fans snapshots out to per-user subscribers. Publish blocks until
// every subscriber has accepted the snapshot or released its subscription, so
// subscribers observe changes in publish order without gaps.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*snapshotSubscriber
	nextID      int64
	bufferSize  int
}

type snapshotSubscriber struct {
	id     int64
	stream chan Snapshot
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*snapshotSubscriber),
		bufferSize:  snapshotBufferSize,
	}
}

// Subscribe registers a subscriber for userID. initial, when non-nil, is
// queued before any published snapshot. The returned release func is
// idempotent and also runs when ctx is done; the stream is never closed while
// a publisher may still be sending, so consumers should select on their own
// context as well.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string, initial *Snapshot) (<-chan Snapshot, func()) {
	if userID == "" {
		ch := make(chan Snapshot)
		close(ch)
		return ch, func() {}
	}
	subscriber := &snapshotSubscriber{
		stream: make(chan Snapshot, d.bufferSize),
		done:   make(chan struct{}),
	}
	if initial != nil {
		subscriber.stream <- *initial
	}
	d.registerSubscriber(userID, subscriber)

	cleanup := func() {
		subscriber.once.Do(func() {
			d.unregisterSubscriber(userID, subscriber.id)
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
	return subscriber.stream, cleanup
}

// Publish delivers snapshot to every subscriber of snapshot.UserID. It gives
// up on a subscriber when that subscriber is released or ctx is done.
func (d *Dispatcher) Publish(ctx context.Context, snapshot Snapshot) {
	if snapshot.UserID == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[snapshot.UserID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*snapshotSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()

	for _, subscriber := range copies {
		select {
		case subscriber.stream <- cloneSnapshot(snapshot):
		case <-subscriber.done:
		case <-ctx.Done():
			return
		}
	}
}

// SubscriberCount reports how many live subscriptions userID holds.
func (d *Dispatcher) SubscriberCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[userID])
}

func (d *Dispatcher) registerSubscriber(userID string, subscriber *snapshotSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	subscriber.id = d.nextID
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*snapshotSubscriber)
	}
	d.subscribers[userID][subscriber.id] = subscriber
}

func (d *Dispatcher) unregisterSubscriber(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}

func cloneSnapshot(snapshot Snapshot) Snapshot {
	copied := snapshot
	copied.Documents = make([]Document, len(snapshot.Documents))
	for index, document := range snapshot.Documents {
		copied.Documents[index] = cloneDocument(document)
	}
	copied.Removed = append([]string(nil), snapshot.Removed...)
	return copied
}
