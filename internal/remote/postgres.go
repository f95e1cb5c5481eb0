package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	changeChannel    = "health_event_changes"
	changeOpUpsert   = "upsert"
	changeOpDelete   = "delete"
	unlistenTimeout  = 2 * time.Second
	createTableQuery = `
		CREATE TABLE IF NOT EXISTS health_event_documents (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			fields     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	createIndexQuery = `
		CREATE INDEX IF NOT EXISTS idx_health_event_documents_user
			ON health_event_documents (user_id, updated_at)`
	listDocumentsQuery = `
		SELECT id, user_id, fields, updated_at
		FROM health_event_documents WHERE user_id = $1
		ORDER BY updated_at ASC, id ASC`
	getDocumentQuery = `
		SELECT id, user_id, fields, updated_at
		FROM health_event_documents WHERE id = $1 AND user_id = $2`
	upsertDocumentQuery = `
		INSERT INTO health_event_documents (id, user_id, fields, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id, fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`
	deleteDocumentQuery = `DELETE FROM health_event_documents WHERE id = $1 AND user_id = $2`
	notifyQuery         = `SELECT pg_notify($1, $2)`
)

// PostgresConfig describes the dependencies of a PostgresStore.
type PostgresConfig struct {
	Pool   *pgxpool.Pool
	Logger *zap.Logger
	Clock  func() time.Time
}

// PostgresStore keeps documents in a JSONB table and streams changes to
// subscribers through LISTEN/NOTIFY.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	clock  func() time.Time
}

type changeNotice struct {
	Op     string `json:"op"`
	UserID string `json:"userId"`
	ID     string `json:"id"`
}

// ConnectPostgres opens a pool for connString and prepares the schema.
func ConnectPostgres(ctx context.Context, connString string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, unavailable("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}
	store, err := NewPostgresStore(ctx, PostgresConfig{Pool: pool, Logger: logger})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an open pool and creates the documents table when missing.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.Pool == nil {
		return nil, errors.New("remote: postgres pool is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	for _, statement := range []string{createTableQuery, createIndexQuery} {
		if _, err := cfg.Pool.Exec(ctx, statement); err != nil {
			return nil, unavailable("create_schema", err)
		}
	}
	return &PostgresStore{pool: cfg.Pool, logger: logger, clock: clock}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// List returns the user's documents ordered by last update.
func (s *PostgresStore) List(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, listDocumentsQuery, userID)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	var documents []Document
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, unavailable("list", err)
		}
		documents = append(documents, document)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return documents, nil
}

// Upsert writes document and notifies listeners in the same transaction.
func (s *PostgresStore) Upsert(ctx context.Context, document Document) error {
	if strings.TrimSpace(document.ID) == "" || strings.TrimSpace(document.UserID) == "" {
		return fmt.Errorf("%w: id and user id are required", ErrInvalidDocument)
	}
	payload, err := json.Marshal(cloneFields(document.Fields))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	updatedAt := document.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.clock()
	}

	return s.inTx(ctx, "upsert", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertDocumentQuery, document.ID, document.UserID, payload, updatedAt.UTC()); err != nil {
			return err
		}
		return notify(ctx, tx, changeNotice{Op: changeOpUpsert, UserID: document.UserID, ID: document.ID})
	})
}

// Delete removes the document. Missing documents are not an error.
func (s *PostgresStore) Delete(ctx context.Context, userID string, id string) error {
	return s.inTx(ctx, "delete", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteDocumentQuery, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return notify(ctx, tx, changeNotice{Op: changeOpDelete, UserID: userID, ID: id})
	})
}

// Subscribe holds a dedicated connection listening for change notices. The
// initial snapshot is read after LISTEN so no change falls between the two.
// The stream is closed when the subscription ends.
func (s *PostgresStore) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, func(), error) {
	if strings.TrimSpace(userID) == "" {
		return nil, func() {}, fmt.Errorf("%w: empty user id", ErrInvalidDocument)
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, func() {}, unavailable("subscribe", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, func() {}, unavailable("subscribe", err)
	}
	documents, err := s.List(ctx, userID)
	if err != nil {
		s.unlisten(conn)
		return nil, func() {}, err
	}

	listenCtx, cancel := context.WithCancel(ctx)
	stream := make(chan Snapshot, snapshotBufferSize)
	stream <- Snapshot{UserID: userID, Documents: documents, ReceivedAt: s.clock().UTC()}

	var once sync.Once
	release := func() {
		once.Do(cancel)
	}
	go s.listen(listenCtx, conn, userID, stream)
	return stream, release, nil
}

func (s *PostgresStore) listen(ctx context.Context, conn *pgxpool.Conn, userID string, stream chan<- Snapshot) {
	defer close(stream)
	defer s.unlisten(conn)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("remote subscription ended",
					zap.String("user_id", userID),
					zap.Error(err))
			}
			return
		}
		notice, ok := parseChangeNotice(notification.Payload)
		if !ok || notice.UserID != userID {
			continue
		}

		snapshot := Snapshot{UserID: userID, ReceivedAt: s.clock().UTC()}
		switch notice.Op {
		case changeOpDelete:
			snapshot.Removed = []string{notice.ID}
		default:
			document, found, err := s.get(ctx, userID, notice.ID)
			if err != nil {
				s.logger.Warn("remote change fetch failed",
					zap.String("user_id", userID),
					zap.String("event_id", notice.ID),
					zap.Error(err))
				continue
			}
			if found {
				snapshot.Documents = []Document{document}
			} else {
				snapshot.Removed = []string{notice.ID}
			}
		}

		select {
		case stream <- snapshot:
		case <-ctx.Done():
			return
		}
	}
}

func (s *PostgresStore) get(ctx context.Context, userID string, id string) (Document, bool, error) {
	rows, err := s.pool.Query(ctx, getDocumentQuery, id, userID)
	if err != nil {
		return Document{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return Document{}, false, rows.Err()
	}
	document, err := scanDocument(rows)
	if err != nil {
		return Document{}, false, err
	}
	return document, true, nil
}

func (s *PostgresStore) unlisten(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), unlistenTimeout)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN "+changeChannel); err != nil {
		s.logger.Debug("remote unlisten failed", zap.Error(err))
	}
	conn.Release()
}

func (s *PostgresStore) inTx(ctx context.Context, operation string, apply func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable(operation, err)
	}
	if err := apply(tx); err != nil {
		_ = tx.Rollback(ctx)
		return unavailable(operation, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable(operation, err)
	}
	return nil
}

func notify(ctx context.Context, tx pgx.Tx, notice changeNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, notifyQuery, changeChannel, string(payload))
	return err
}

func parseChangeNotice(payload string) (changeNotice, bool) {
	var notice changeNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		return changeNotice{}, false
	}
	if notice.ID == "" || notice.UserID == "" {
		return changeNotice{}, false
	}
	return notice, true
}

func scanDocument(rows pgx.Rows) (Document, error) {
	var (
		document Document
		payload  []byte
	)
	if err := rows.Scan(&document.ID, &document.UserID, &payload, &document.UpdatedAt); err != nil {
		return Document{}, err
	}
	document.Fields = map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &document.Fields); err != nil {
			return Document{}, err
		}
	}
	return document, nil
}

func unavailable(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, operation, err)
}
