package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"go.uber.org/zap"
)

var (
	// ErrMissingTitle indicates an event input without a title.
	ErrMissingTitle = errors.New("calendar: title is required")

	errMissingSource  = errors.New("calendar: event source is required")
	errMissingActions = errors.New("calendar: event actions are required")
	errAlreadyStarted = errors.New("calendar: view state already started")
)

// EventSource streams the full event list of a user after every change.
type EventSource interface {
	Watch(ctx context.Context, userID string) (<-chan []events.HealthEvent, func(), error)
}

// EventActions performs the user's mutations. eventsync.Coordinator
// satisfies it.
type EventActions interface {
	UserID() string
	Create(ctx context.Context, event events.HealthEvent) (events.HealthEvent, error)
	ToggleCompletion(ctx context.Context, eventID string, date string) (events.HealthEvent, error)
	Delete(ctx context.Context, eventID string) error
}

// EventInput is what a user fills in when adding an event.
type EventInput struct {
	Title      string            `json:"title"`
	Subtitle   string            `json:"subtitle"`
	Time       string            `json:"time"`
	StartDate  string            `json:"startDate"`
	Type       events.EventType  `json:"type"`
	Recurrence events.Recurrence `json:"recurrence"`
}

// Config describes the dependencies of a ViewState.
type Config struct {
	Source  EventSource
	Actions EventActions
	IDs     events.IDProvider
	Clock   func() time.Time
	Logger  *zap.Logger
}

// ViewState holds the selected date and the projection derived from it and
// the latest event list.
type ViewState struct {
	source  EventSource
	actions EventActions
	ids     events.IDProvider
	clock   func() time.Time
	logger  *zap.Logger

	mu           sync.Mutex
	selectedDate string
	all          []events.HealthEvent
	lastError    string
	projection   Projection
	started      bool
	release      func()
	done         chan struct{}

	watchers *projectionHub
}

// NewViewState constructs a ViewState whose cursor starts at today.
func NewViewState(cfg Config) (*ViewState, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	if cfg.Actions == nil {
		return nil, errMissingActions
	}
	ids := cfg.IDs
	if ids == nil {
		ids = events.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	today := events.Today(clock)
	return &ViewState{
		source:       cfg.Source,
		actions:      cfg.Actions,
		ids:          ids,
		clock:        clock,
		logger:       logger,
		selectedDate: today,
		projection:   Project(nil, today),
		watchers:     newProjectionHub(),
	}, nil
}

// Start follows the user's event list until ctx is done or Stop is called.
func (v *ViewState) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return errAlreadyStarted
	}
	v.started = true
	v.mu.Unlock()

	stream, release, err := v.source.Watch(ctx, v.actions.UserID())
	if err != nil {
		v.mu.Lock()
		v.started = false
		v.mu.Unlock()
		v.recordError("watch", err)
		return fmt.Errorf("calendar: watch events: %w", err)
	}

	done := make(chan struct{})
	v.mu.Lock()
	v.release = release
	v.done = done
	v.mu.Unlock()

	go func() {
		defer close(done)
		for list := range stream {
			v.applyList(list)
		}
	}()
	return nil
}

// Stop releases the event subscription and closes every projection watcher.
func (v *ViewState) Stop() {
	v.mu.Lock()
	release := v.release
	done := v.done
	v.release = nil
	v.mu.Unlock()

	if release != nil {
		release()
	}
	if done != nil {
		<-done
	}
	v.watchers.closeAll()
}

// SelectedDate returns the cursor as yyyyMMdd.
func (v *ViewState) SelectedDate() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedDate
}

// SetSelectedDate moves the cursor and re-derives the projection.
func (v *ViewState) SetSelectedDate(date string) error {
	if !events.IsValidDate(date) {
		return fmt.Errorf("%w: %q", events.ErrInvalidDate, date)
	}
	v.mu.Lock()
	v.selectedDate = date
	projection := v.recomputeLocked()
	v.mu.Unlock()

	v.watchers.publish(projection)
	return nil
}

// Projection returns the current projection.
func (v *ViewState) Projection() Projection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneProjection(v.projection)
}

// Watch streams projections. A consumer that falls behind only sees the
// newest one. The current projection is delivered immediately.
func (v *ViewState) Watch(ctx context.Context) (<-chan Projection, func()) {
	stream, release := v.watchers.subscribe(ctx)
	v.watchers.offerTo(stream, v.Projection())
	return stream, release
}

// AddEvent creates an event from input with a fresh id. StartDate defaults to
// the selected date and the type and recurrence default to a daily medication.
func (v *ViewState) AddEvent(ctx context.Context, input EventInput) (events.HealthEvent, error) {
	if strings.TrimSpace(input.Title) == "" {
		return events.HealthEvent{}, ErrMissingTitle
	}
	timeOfDay := strings.TrimSpace(input.Time)
	if timeOfDay != "" {
		parsed, err := events.ParseTimeOfDay(timeOfDay)
		if err != nil {
			return events.HealthEvent{}, err
		}
		timeOfDay = parsed.String()
	}
	startDate := strings.TrimSpace(input.StartDate)
	if startDate == "" {
		startDate = v.SelectedDate()
	}
	if !events.IsValidDate(startDate) {
		return events.HealthEvent{}, fmt.Errorf("%w: %q", events.ErrInvalidDate, startDate)
	}
	eventType := events.EventTypeMedication
	if strings.TrimSpace(string(input.Type)) != "" {
		parsed, err := events.ParseEventType(string(input.Type))
		if err != nil {
			return events.HealthEvent{}, err
		}
		eventType = parsed
	}
	recurrence := events.RecurrenceDaily
	if strings.TrimSpace(string(input.Recurrence)) != "" {
		parsed, err := events.ParseRecurrence(string(input.Recurrence))
		if err != nil {
			return events.HealthEvent{}, err
		}
		recurrence = parsed
	}

	id, err := v.ids.NewID()
	if err != nil {
		return events.HealthEvent{}, fmt.Errorf("calendar: generate event id: %w", err)
	}
	created, err := v.actions.Create(ctx, events.HealthEvent{
		ID:         id,
		UserID:     v.actions.UserID(),
		Title:      strings.TrimSpace(input.Title),
		Subtitle:   strings.TrimSpace(input.Subtitle),
		Time:       timeOfDay,
		StartDate:  startDate,
		Type:       eventType,
		Recurrence: recurrence,
	})
	if err != nil {
		v.recordError("add_event", err)
		return events.HealthEvent{}, err
	}
	return created, nil
}

// ToggleCompletion flips whether eventID was taken on the selected date.
func (v *ViewState) ToggleCompletion(ctx context.Context, eventID string) (events.HealthEvent, error) {
	toggled, err := v.actions.ToggleCompletion(ctx, eventID, v.SelectedDate())
	if err != nil {
		v.recordError("toggle_completion", err)
		return events.HealthEvent{}, err
	}
	return toggled, nil
}

// DeleteEvent removes eventID.
func (v *ViewState) DeleteEvent(ctx context.Context, eventID string) error {
	if err := v.actions.Delete(ctx, eventID); err != nil {
		v.recordError("delete_event", err)
		return err
	}
	return nil
}

func (v *ViewState) applyList(list []events.HealthEvent) {
	v.mu.Lock()
	v.all = list
	v.lastError = ""
	projection := v.recomputeLocked()
	v.mu.Unlock()

	v.watchers.publish(projection)
}

// recordError keeps the last good list and only surfaces the failure.
func (v *ViewState) recordError(action string, err error) {
	v.logger.Warn("calendar action failed", zap.String("action", action), zap.Error(err))
	v.mu.Lock()
	v.lastError = err.Error()
	projection := v.recomputeLocked()
	v.mu.Unlock()

	v.watchers.publish(projection)
}

func (v *ViewState) recomputeLocked() Projection {
	projection := Project(v.all, v.selectedDate)
	projection.LastError = v.lastError
	v.projection = projection
	return cloneProjection(projection)
}

func cloneProjection(projection Projection) Projection {
	cloned := projection
	cloned.Visible = cloneEvents(projection.Visible)
	cloned.Medications.Pending = cloneEvents(projection.Medications.Pending)
	cloned.Medications.Completed = cloneEvents(projection.Medications.Completed)
	cloned.Appointments = cloneEvents(projection.Appointments)
	return cloned
}

func cloneEvents(list []events.HealthEvent) []events.HealthEvent {
	copied := make([]events.HealthEvent, len(list))
	for index, event := range list {
		copied[index] = event.Clone()
	}
	return copied
}
