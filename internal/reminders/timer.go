package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const notifyTimeout = 15 * time.Second

var errMissingNotifier = errors.New("reminders: notifier is required")

// TimerConfig describes the dependencies of a TimerScheduler.
type TimerConfig struct {
	Notifier Notifier
	Clock    func() time.Time
	Logger   *zap.Logger
}

// TimerScheduler keeps one in-process timer per event id. Reminders whose fire
// time has already passed fire immediately.
type TimerScheduler struct {
	mu       sync.Mutex
	pending  map[string]*pendingReminder
	notifier Notifier
	clock    func() time.Time
	logger   *zap.Logger
	stopped  bool
}

type pendingReminder struct {
	timer    *time.Timer
	reminder Reminder
}

// NewTimerScheduler constructs a TimerScheduler.
func NewTimerScheduler(cfg TimerConfig) (*TimerScheduler, error) {
	if cfg.Notifier == nil {
		return nil, errMissingNotifier
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerScheduler{
		pending:  make(map[string]*pendingReminder),
		notifier: cfg.Notifier,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Schedule arms a reminder for eventID, replacing any pending one.
func (s *TimerScheduler) Schedule(eventID string, fireAtMillis int64, payload Payload) error {
	fireAt := time.UnixMilli(fireAtMillis)
	delay := fireAt.Sub(s.clock())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	if existing, ok := s.pending[eventID]; ok {
		existing.timer.Stop()
	}
	entry := &pendingReminder{reminder: Reminder{EventID: eventID, FireAt: fireAt, Payload: payload}}
	entry.timer = time.AfterFunc(delay, func() {
		s.fire(entry)
	})
	s.pending[eventID] = entry
	return nil
}

// Cancel disarms the reminder for eventID. Cancelling an unknown id is a no-op.
func (s *TimerScheduler) Cancel(eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pending[eventID]; ok {
		existing.timer.Stop()
		delete(s.pending, eventID)
	}
	return nil
}

// Pending reports the fire time of the reminder armed for eventID.
func (s *TimerScheduler) Pending(eventID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[eventID]
	if !ok {
		return time.Time{}, false
	}
	return entry.reminder.FireAt, true
}

// Stop disarms every pending reminder. Later Schedule calls are ignored.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for eventID, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, eventID)
	}
}

func (s *TimerScheduler) fire(entry *pendingReminder) {
	s.mu.Lock()
	current, ok := s.pending[entry.reminder.EventID]
	if !ok || current != entry {
		s.mu.Unlock()
		return
	}
	delete(s.pending, entry.reminder.EventID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, entry.reminder); err != nil {
		s.logger.Error("reminder delivery failed",
			zap.String("operation", "reminders.fire"),
			zap.String("event_id", entry.reminder.EventID),
			zap.Error(err))
	}
}
