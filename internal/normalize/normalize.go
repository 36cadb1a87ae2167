// Package normalize maps each raw source record type into the unified
// CalendarEvent shape. All three mappers are pure; none filter by
// resident, so cross-resident occupancy stays visible downstream.
package normalize

import (
	"time"

	"carecal/internal/model"
	"carecal/internal/timeblock"
)

// Source-prefixing keeps ids disjoint across the three streams, making
// dedup by id safe even when raw ids collide.
const (
	visitIDPrefix    = "visit:"
	scheduleIDPrefix = "sched:"
	eventIDPrefix    = "event:"
)

// Visits maps visit records to calendar events, keeping only statuses
// that still occupy a slot.
func Visits(visits []model.VisitRecord) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(visits))
	for _, v := range visits {
		if !v.Status.Active() {
			continue
		}
		out = append(out, model.CalendarEvent{
			ID:         visitIDPrefix + v.VisitID,
			Date:       VisitDate(v.VisitDate),
			TimeBlock:  v.TimeBlock,
			Kind:       model.KindVisit,
			ResidentID: v.ResidentID,
			Name:       timeblock.Label(v.TimeBlock),
			Note:       v.Notes,
			Confirmed:  true,
		})
	}
	return out
}

// RoomLookup resolves a resident's room number for occurrence locations.
type RoomLookup func(residentID string) (string, bool)

// Occurrences maps expanded schedule occurrences to care events. The
// occurrence's start clock time picks the time block; a start outside
// every catalog range leaves the block empty. Location prefers the
// resident's room, then the activity name, then a placeholder.
func Occurrences(occs []model.ScheduleOccurrence, rooms RoomLookup) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(occs))
	for _, o := range occs {
		block, _ := timeblock.FromClock(o.Start)
		start, end := o.Start, o.End

		location := "Location TBD"
		if rooms != nil {
			if room, ok := rooms(o.ResidentID); ok && room != "" {
				location = "Room " + room
			} else if o.ActivityName != "" {
				location = o.ActivityName
			}
		} else if o.ActivityName != "" {
			location = o.ActivityName
		}

		out = append(out, model.CalendarEvent{
			ID:         scheduleIDPrefix + o.OccurrenceID(),
			Date:       o.OccurrenceDate,
			TimeBlock:  block,
			Start:      &start,
			End:        &end,
			Kind:       model.KindCare,
			ResidentID: o.ResidentID,
			Name:       o.Title,
			Location:   location,
			Staff:      o.Staff,
			Note:       o.Notes,
			Confirmed:  true,
		})
	}
	return out
}

// FacilityEvents maps facility events, keeping only Upcoming/Ongoing.
// Facility events have no assigned caregiver in this model.
func FacilityEvents(events []model.FacilityEvent) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, e := range events {
		if e.Status != model.EventUpcoming && e.Status != model.EventOngoing {
			continue
		}
		block, _ := timeblock.FromClock(e.StartTime)
		start, end := e.StartTime, e.EndTime
		out = append(out, model.CalendarEvent{
			ID:        eventIDPrefix + e.EventID,
			Date:      model.LocalDate(e.StartTime),
			TimeBlock: block,
			Start:     &start,
			End:       &end,
			Kind:      model.KindCare,
			Name:      e.Name,
			Location:  e.Location,
			Staff:     "Event",
			Confirmed: true,
		})
	}
	return out
}

// VisitDate resolves a visit's raw date field to a plain calendar date.
// A value already in YYYY-MM-DD form is taken verbatim; anything else is
// parsed as an instant and mapped through its local calendar fields,
// never via UTC conversion, so a visit recorded at 23:30-05:00 stays on
// its wall-clock day.
func VisitDate(raw string) string {
	if _, err := time.Parse(model.DateLayout, raw); err == nil {
		return raw
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return model.LocalDate(t)
		}
	}
	// Unparseable input degrades to the raw value; day-column matching
	// will simply never hit it.
	return raw
}
