// Package occurrence computes concrete fire times of health events with RFC 5545
// recurrence rules, following the same visibility rules as events.IsVisible.
package occurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/teambition/rrule-go"
)

const lastFixedMonthDay = 28

// ErrNotSchedulable marks an event whose dates or time cannot be parsed.
var ErrNotSchedulable = errors.New("occurrence: event is not schedulable")

// RuleString renders the RRULE value (without the RRULE: prefix) matching the
// recurrence of an event anchored on startDay. Monthly anchors past the 28th
// select the last existing day up to the anchor, which clamps to the end of
// shorter months. ONE_TIME yields a single occurrence.
func RuleString(recurrence events.Recurrence, startDay int) (string, error) {
	switch recurrence {
	case events.RecurrenceOneTime:
		return "FREQ=DAILY;COUNT=1", nil
	case events.RecurrenceDaily:
		return "FREQ=DAILY", nil
	case events.RecurrenceWeekly:
		return "FREQ=WEEKLY", nil
	case events.RecurrenceMonthly:
		if startDay <= lastFixedMonthDay {
			return fmt.Sprintf("FREQ=MONTHLY;BYMONTHDAY=%d", startDay), nil
		}
		days := make([]string, 0, startDay-lastFixedMonthDay+1)
		for day := lastFixedMonthDay; day <= startDay; day++ {
			days = append(days, fmt.Sprintf("%d", day))
		}
		return fmt.Sprintf("FREQ=MONTHLY;BYMONTHDAY=%s;BYSETPOS=-1", strings.Join(days, ",")), nil
	default:
		return "", fmt.Errorf("occurrence: unknown recurrence %q", recurrence)
	}
}

// Start returns the first occurrence of event: its start date at its time of
// day, in the local time zone.
func Start(event events.HealthEvent) (time.Time, error) {
	day, err := events.ParseDate(event.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNotSchedulable, err)
	}
	timeOfDay, err := events.ParseTimeOfDay(event.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNotSchedulable, err)
	}
	return timeOfDay.On(day), nil
}

// Rule builds the recurrence rule of event.
func Rule(event events.HealthEvent) (*rrule.RRule, error) {
	dtstart, err := Start(event)
	if err != nil {
		return nil, err
	}
	ruleString, err := RuleString(event.Recurrence, dtstart.Day())
	if err != nil {
		return nil, err
	}
	option, err := rrule.StrToROption(ruleString)
	if err != nil {
		return nil, fmt.Errorf("occurrence: parse rule %q: %w", ruleString, err)
	}
	option.Dtstart = dtstart
	return rrule.NewRRule(*option)
}

// Next returns the first occurrence of event strictly after after. The bool is
// false when the event has no further occurrences.
func Next(event events.HealthEvent, after time.Time) (time.Time, bool, error) {
	rule, err := Rule(event)
	if err != nil {
		return time.Time{}, false, err
	}
	next := rule.After(after.In(time.Local), false)
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next, true, nil
}
