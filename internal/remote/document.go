package remote

import (
	"context"
	"errors"
	"time"
)

// Field keys of a health event document.
const (
	FieldID         = "id"
	FieldUserID     = "userId"
	FieldTitle      = "title"
	FieldSubtitle   = "subtitle"
	FieldTime       = "time"
	FieldStartDate  = "startDate"
	FieldType       = "type"
	FieldRecurrence = "recurrence"
	FieldDatesTaken = "datesTaken"
)

var (
	// ErrUnavailable marks a remote store that cannot be reached.
	ErrUnavailable = errors.New("remote: store unavailable")
	// ErrInvalidDocument indicates a document without a usable id or owner.
	ErrInvalidDocument = errors.New("remote: invalid document")
)

// Document is a remote health event document. Fields holds the loosely typed
// payload as stored remotely and is decoded defensively by DecodeDocument.
type Document struct {
	ID        string
	UserID    string
	Fields    map[string]any
	UpdatedAt time.Time
}

// Snapshot is one delivery of a live subscription: full copies of documents
// that changed plus the ids removed since the previous delivery. The first
// delivery of a subscription carries every document of the user.
type Snapshot struct {
	UserID     string
	Documents  []Document
	Removed    []string
	ReceivedAt time.Time
}

// DocumentStore is the per-user remote collection of health event documents.
type DocumentStore interface {
	List(ctx context.Context, userID string) ([]Document, error)
	// Subscribe streams snapshots until ctx is done or the returned func is
	// called. The release func is idempotent.
	Subscribe(ctx context.Context, userID string) (<-chan Snapshot, func(), error)
	Upsert(ctx context.Context, document Document) error
	// Delete removes the document; deleting a missing document is not an error.
	Delete(ctx context.Context, userID string, id string) error
}

func cloneDocument(document Document) Document {
	copied := document
	copied.Fields = cloneFields(document.Fields)
	return copied
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		switch typed := value.(type) {
		case []string:
			copied[key] = append([]string(nil), typed...)
		case []any:
			copied[key] = append([]any(nil), typed...)
		default:
			copied[key] = value
		}
	}
	return copied
}
