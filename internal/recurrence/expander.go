// Package recurrence expands recurring schedule definitions into
// concrete dated occurrences over a view window.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"carecal/internal/model"
)

// Recurrence rules arrive as RRULE strings from the schedule
// collaborator (FREQ=WEEKLY;BYDAY=MO,WE / FREQ=DAILY;INTERVAL=2). An
// absent rule means a single occurrence.

const defaultMaxOccurrences = 1000

// Expander turns definitions plus a window into dated occurrences.
// Expansion is a pure function of its inputs; the zero value is usable.
type Expander struct {
	// MaxOccurrences caps expansion per definition so a pathological
	// rule can never produce an unbounded sequence.
	MaxOccurrences int
}

// Expand emits every occurrence of def inside [windowStart, windowEnd].
// Both endpoints are inclusive: windowEnd is normalized to end-of-day
// before comparison, so a schedule anywhere within the final calendar
// day of the window is included. Duplicate occurrences on one date from
// a pathological rule are emitted as-is; de-duplication belongs to the
// aggregator, keyed on scheduleId + occurrenceDate.
func (e Expander) Expand(def model.ScheduleDefinition, windowStart, windowEnd time.Time) ([]model.ScheduleOccurrence, error) {
	start := startOfDay(windowStart)
	end := endOfDay(windowEnd)
	if end.Before(start) {
		return nil, fmt.Errorf("expand %s: window end before start", def.ScheduleID)
	}

	if strings.TrimSpace(def.RecurrenceRule) == "" {
		return e.expandSingle(def, start, end), nil
	}
	return e.expandRecurring(def, start, end)
}

// ExpandAll expands a batch of definitions against one window,
// concatenating results in input order.
func (e Expander) ExpandAll(defs []model.ScheduleDefinition, windowStart, windowEnd time.Time) ([]model.ScheduleOccurrence, error) {
	var out []model.ScheduleOccurrence
	for _, def := range defs {
		occ, err := e.Expand(def, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, occ...)
	}
	return out, nil
}

func (e Expander) expandSingle(def model.ScheduleDefinition, start, end time.Time) []model.ScheduleOccurrence {
	if def.StartTime.Before(start) || def.StartTime.After(end) {
		return nil
	}
	return []model.ScheduleOccurrence{makeOccurrence(def, def.StartTime)}
}

func (e Expander) expandRecurring(def model.ScheduleDefinition, start, end time.Time) ([]model.ScheduleOccurrence, error) {
	r, err := rrule.StrToRRule(def.RecurrenceRule)
	if err != nil {
		return nil, fmt.Errorf("expand %s: parse rule %q: %w", def.ScheduleID, def.RecurrenceRule, err)
	}
	r.DTStart(def.StartTime)

	var set rrule.Set
	set.RRule(r)

	// Between with inc=true keeps occurrences landing exactly on either
	// window endpoint.
	times := set.Between(start.In(def.StartTime.Location()), end.In(def.StartTime.Location()), true)

	limit := e.MaxOccurrences
	if limit <= 0 {
		limit = defaultMaxOccurrences
	}
	if len(times) > limit {
		times = times[:limit]
	}

	out := make([]model.ScheduleOccurrence, 0, len(times))
	for _, t := range times {
		out = append(out, makeOccurrence(def, t))
	}
	return out, nil
}

// makeOccurrence resolves one occurrence start, carrying the parent's
// clock time and duration onto the occurrence date.
func makeOccurrence(def model.ScheduleDefinition, start time.Time) model.ScheduleOccurrence {
	dur := def.EndTime.Sub(def.StartTime)
	if dur < 0 {
		dur = 0
	}
	return model.ScheduleOccurrence{
		ScheduleDefinition: def,
		OccurrenceDate:     model.LocalDate(start),
		Start:              start,
		End:                start.Add(dur),
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
