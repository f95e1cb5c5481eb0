// Package importer loads health event fixtures from YAML files.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

// ErrInvalidFixture indicates a fixture entry that does not describe a valid event.
var ErrInvalidFixture = errors.New("importer: invalid fixture")

// Fixture is one event entry of an import file.
type Fixture struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Subtitle   string   `yaml:"subtitle"`
	Time       string   `yaml:"time"`
	StartDate  string   `yaml:"startDate"`
	Type       string   `yaml:"type"`
	Recurrence string   `yaml:"recurrence"`
	DatesTaken []string `yaml:"datesTaken"`
}

type fixtureFile struct {
	Events []Fixture `yaml:"events"`
}

// Creator stores an imported event. eventsync.Coordinator satisfies it.
type Creator interface {
	Create(ctx context.Context, event events.HealthEvent) (events.HealthEvent, error)
}

// LoadYAML decodes an import file and converts every entry for userID.
// Entries without an id get one from ids. Type and recurrence default to a
// daily medication; any malformed entry fails the whole file.
func LoadYAML(r io.Reader, userID string, ids events.IDProvider) ([]events.HealthEvent, error) {
	var file fixtureFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("importer: decode yaml: %w", err)
	}

	list := make([]events.HealthEvent, 0, len(file.Events))
	for index, fixture := range file.Events {
		event, err := fixture.toEvent(userID, ids)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", index, err)
		}
		list = append(list, event)
	}
	return list, nil
}

// Apply creates every event through creator and returns how many were stored.
func Apply(ctx context.Context, creator Creator, list []events.HealthEvent) (int, error) {
	for index, event := range list {
		if _, err := creator.Create(ctx, event); err != nil {
			return index, fmt.Errorf("importer: create %s: %w", event.ID, err)
		}
	}
	return len(list), nil
}

func (fixture Fixture) toEvent(userID string, ids events.IDProvider) (events.HealthEvent, error) {
	title := strings.TrimSpace(fixture.Title)
	if title == "" {
		return events.HealthEvent{}, fmt.Errorf("%w: title is required", ErrInvalidFixture)
	}
	timeOfDay, err := events.ParseTimeOfDay(fixture.Time)
	if err != nil {
		return events.HealthEvent{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	if !events.IsValidDate(fixture.StartDate) {
		return events.HealthEvent{}, fmt.Errorf("%w: %w: %q", ErrInvalidFixture, events.ErrInvalidDate, fixture.StartDate)
	}

	eventType := events.EventTypeMedication
	if fixture.Type != "" {
		parsed, err := events.ParseEventType(fixture.Type)
		if err != nil {
			return events.HealthEvent{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
		}
		eventType = parsed
	}
	recurrence := events.RecurrenceDaily
	if fixture.Recurrence != "" {
		parsed, err := events.ParseRecurrence(fixture.Recurrence)
		if err != nil {
			return events.HealthEvent{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
		}
		recurrence = parsed
	}
	for _, date := range fixture.DatesTaken {
		if !events.IsValidDate(date) {
			return events.HealthEvent{}, fmt.Errorf("%w: %w: taken %q", ErrInvalidFixture, events.ErrInvalidDate, date)
		}
	}

	id := strings.TrimSpace(fixture.ID)
	if id == "" {
		generated, err := ids.NewID()
		if err != nil {
			return events.HealthEvent{}, fmt.Errorf("importer: generate id: %w", err)
		}
		id = generated
	}
	return events.HealthEvent{
		ID:         id,
		UserID:     userID,
		Title:      title,
		Subtitle:   strings.TrimSpace(fixture.Subtitle),
		Time:       timeOfDay.String(),
		StartDate:  fixture.StartDate,
		Type:       eventType,
		Recurrence: recurrence,
		DatesTaken: events.NormalizeDates(fixture.DatesTaken),
	}, nil
}
