package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process DocumentStore. It backs single-device setups
// and tests; documents do not survive a restart.
type MemoryStore struct {
	publishMu  sync.Mutex
	mu         sync.RWMutex
	documents  map[string]map[string]Document
	order      map[string][]string
	dispatcher *Dispatcher
	clock      func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		documents:  make(map[string]map[string]Document),
		order:      make(map[string][]string),
		dispatcher: NewDispatcher(),
		clock:      clock,
	}
}

// List returns the user's documents in first-write order.
func (s *MemoryStore) List(ctx context.Context, userID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(userID), nil
}

// Subscribe delivers every document of the user first, then one snapshot per
// change.
func (s *MemoryStore) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, func(), error) {
	if strings.TrimSpace(userID) == "" {
		return nil, func() {}, fmt.Errorf("%w: empty user id", ErrInvalidDocument)
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.RLock()
	initial := Snapshot{
		UserID:     userID,
		Documents:  s.listLocked(userID),
		ReceivedAt: s.clock().UTC(),
	}
	s.mu.RUnlock()

	stream, release := s.dispatcher.Subscribe(ctx, userID, &initial)
	return stream, release, nil
}

// Upsert stores document, replacing any document with the same id.
func (s *MemoryStore) Upsert(ctx context.Context, document Document) error {
	if strings.TrimSpace(document.ID) == "" || strings.TrimSpace(document.UserID) == "" {
		return fmt.Errorf("%w: id and user id are required", ErrInvalidDocument)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	stored := cloneDocument(document)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.clock().UTC()
	}

	s.mu.Lock()
	userDocuments, ok := s.documents[stored.UserID]
	if !ok {
		userDocuments = make(map[string]Document)
		s.documents[stored.UserID] = userDocuments
	}
	if _, exists := userDocuments[stored.ID]; !exists {
		s.order[stored.UserID] = append(s.order[stored.UserID], stored.ID)
	}
	userDocuments[stored.ID] = stored
	s.mu.Unlock()

	s.dispatcher.Publish(ctx, Snapshot{
		UserID:     stored.UserID,
		Documents:  []Document{stored},
		ReceivedAt: s.clock().UTC(),
	})
	return nil
}

// Delete removes the document when present.
func (s *MemoryStore) Delete(ctx context.Context, userID string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	userDocuments := s.documents[userID]
	if _, exists := userDocuments[id]; !exists {
		s.mu.Unlock()
		return nil
	}
	delete(userDocuments, id)
	remaining := make([]string, 0, len(s.order[userID]))
	for _, existing := range s.order[userID] {
		if existing != id {
			remaining = append(remaining, existing)
		}
	}
	s.order[userID] = remaining
	s.mu.Unlock()

	s.dispatcher.Publish(ctx, Snapshot{
		UserID:     userID,
		Removed:    []string{id},
		ReceivedAt: s.clock().UTC(),
	})
	return nil
}

func (s *MemoryStore) listLocked(userID string) []Document {
	userDocuments := s.documents[userID]
	list := make([]Document, 0, len(userDocuments))
	for _, id := range s.order[userID] {
		if document, ok := userDocuments[id]; ok {
			list = append(list, cloneDocument(document))
		}
	}
	return list
}

// SubscriberCount reports the live subscriptions of userID.
func (s *MemoryStore) SubscriberCount(userID string) int {
	return s.dispatcher.SubscriberCount(userID)
}
