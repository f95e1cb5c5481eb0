package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	fieldUserID        = "user_id"
	fieldEventID       = "event_id"
	queryEventID       = fieldEventID + " = ?"
	queryUserID        = fieldUserID + " = ?"
	orderInsertSeqAsc  = "insert_seq ASC"
	reasonMissingDB    = "missing_database"
	reasonQueryFailed  = "query_failed"
	reasonSelectFailed = "select_failed"
	reasonSaveFailed   = "save_failed"
	reasonDeleteFailed = "delete_failed"
	reasonSeqFailed    = "sequence_failed"
)

var noOpLogger = zap.NewNop()

// Config describes the dependencies of a LocalStore.
type Config struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// LocalStore is the local cache of health events keyed by event id. Writes are
// sequential; every write publishes the owner's full event list to watchers.
type LocalStore struct {
	db      *gorm.DB
	clock   func() time.Time
	logger  *zap.Logger
	writeMu sync.Mutex
	hub     *watchHub
}

// New constructs a LocalStore over an already migrated database.
func New(cfg Config) (*LocalStore, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, reasonMissingDB, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &LocalStore{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
		hub:    newWatchHub(),
	}, nil
}

// InsertOrReplace upserts event by id. A replaced record keeps its original
// position in the insertion order.
func (s *LocalStore) InsertOrReplace(ctx context.Context, event events.HealthEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	record := recordFromEvent(event)
	record.UpdatedAtSeconds = s.clock().UTC().Unix()
	previousUserID := ""

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing EventRecord
		err := tx.Where(queryEventID, event.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			var maxSeq int64
			if err := tx.Model(&EventRecord{}).Select("COALESCE(MAX(insert_seq), 0)").Scan(&maxSeq).Error; err != nil {
				s.logError(opInsertOrReplace, reasonSeqFailed, err, zap.String(fieldEventID, event.ID))
				return newStoreError(opInsertOrReplace, reasonSeqFailed, err)
			}
			record.InsertSeq = maxSeq + 1
		case err != nil:
			s.logError(opInsertOrReplace, reasonSelectFailed, err, zap.String(fieldEventID, event.ID))
			return newStoreError(opInsertOrReplace, reasonSelectFailed, err)
		default:
			record.InsertSeq = existing.InsertSeq
			previousUserID = existing.UserID
		}

		write := tx.Save
		if previousUserID == "" {
			write = tx.Create
		}
		if err := write(&record).Error; err != nil {
			s.logError(opInsertOrReplace, reasonSaveFailed, err,
				zap.String(fieldUserID, event.UserID),
				zap.String(fieldEventID, event.ID))
			return newStoreError(opInsertOrReplace, reasonSaveFailed, err)
		}
		return nil
	})
	if txErr != nil {
		var storeErr *StoreError
		if errors.As(txErr, &storeErr) {
			return txErr
		}
		s.logError(opInsertOrReplace, reasonQueryFailed, txErr, zap.String(fieldEventID, event.ID))
		return newStoreError(opInsertOrReplace, reasonQueryFailed, txErr)
	}

	s.publishLocked(ctx, event.UserID)
	if previousUserID != "" && previousUserID != event.UserID {
		s.publishLocked(ctx, previousUserID)
	}
	return nil
}

// Delete removes the event when present. Deleting a missing id is not an error.
func (s *LocalStore) Delete(ctx context.Context, eventID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var existing EventRecord
	err := s.db.WithContext(ctx).Where(queryEventID, eventID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		s.logError(opDelete, reasonSelectFailed, err, zap.String(fieldEventID, eventID))
		return newStoreError(opDelete, reasonSelectFailed, err)
	}

	if err := s.db.WithContext(ctx).Where(queryEventID, eventID).Delete(&EventRecord{}).Error; err != nil {
		s.logError(opDelete, reasonDeleteFailed, err, zap.String(fieldEventID, eventID))
		return newStoreError(opDelete, reasonDeleteFailed, err)
	}

	s.publishLocked(ctx, existing.UserID)
	return nil
}

// GetByID returns the event and true, or false when no record has that id.
func (s *LocalStore) GetByID(ctx context.Context, eventID string) (events.HealthEvent, bool, error) {
	var record EventRecord
	err := s.db.WithContext(ctx).Where(queryEventID, eventID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return events.HealthEvent{}, false, nil
	}
	if err != nil {
		s.logError(opGetByID, reasonQueryFailed, err, zap.String(fieldEventID, eventID))
		return events.HealthEvent{}, false, newStoreError(opGetByID, reasonQueryFailed, err)
	}
	return record.toEvent(), true, nil
}

// ListAll returns the user's events in insertion order.
func (s *LocalStore) ListAll(ctx context.Context, userID string) ([]events.HealthEvent, error) {
	var records []EventRecord
	if err := s.db.WithContext(ctx).
		Where(queryUserID, userID).
		Order(orderInsertSeqAsc).
		Find(&records).Error; err != nil {
		s.logError(opListAll, reasonQueryFailed, err, zap.String(fieldUserID, userID))
		return nil, newStoreError(opListAll, reasonQueryFailed, err)
	}

	list := make([]events.HealthEvent, 0, len(records))
	for _, record := range records {
		list = append(list, record.toEvent())
	}
	return list, nil
}

// Watch subscribes to the user's event list. The current list is delivered
// immediately and the full list again after every mutation. Cancelling ctx or
// calling the returned func releases the subscription; both are idempotent.
func (s *LocalStore) Watch(ctx context.Context, userID string) (<-chan []events.HealthEvent, func(), error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	subscriber, cancel := s.hub.subscribe(ctx, userID)
	initial, err := s.ListAll(ctx, userID)
	if err != nil {
		cancel()
		return nil, func() {}, newStoreError(opWatch, reasonQueryFailed, err)
	}
	subscriber.offer(initial)
	return subscriber.stream, cancel, nil
}

// publishLocked must run with writeMu held so deliveries follow write order.
// A failed re-read leaves watchers on their last delivered list.
func (s *LocalStore) publishLocked(ctx context.Context, userID string) {
	if !s.hub.hasSubscribers(userID) {
		return
	}
	list, err := s.ListAll(context.WithoutCancel(ctx), userID)
	if err != nil {
		s.logger.Warn("store publish skipped", zap.String(fieldUserID, userID), zap.Error(err))
		return
	}
	s.hub.publish(userID, list)
}

func (s *LocalStore) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("local store error", attrs...)
}
