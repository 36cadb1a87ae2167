// Package model holds the data shapes shared across the calendar engine.
package model

import (
	"time"

	"carecal/internal/timeblock"
)

// DateLayout is the plain calendar-date form used for day addressing.
const DateLayout = "2006-01-02"

// VisitStatus is the lifecycle status of a visit record, owned by the
// booking collaborator.
type VisitStatus string

const (
	VisitScheduled VisitStatus = "scheduled"
	VisitApproved  VisitStatus = "approved"
	VisitPending   VisitStatus = "pending"
	VisitCancelled VisitStatus = "cancelled"
	VisitCompleted VisitStatus = "completed"
)

// Active reports whether the visit still occupies its slot.
func (s VisitStatus) Active() bool {
	switch s {
	case VisitScheduled, VisitApproved, VisitPending:
		return true
	}
	return false
}

// VisitRecord is a booked visiting-time slot.
type VisitRecord struct {
	VisitID    string          `json:"visit_id"`
	ResidentID string          `json:"resident_id"`
	VisitDate  string          `json:"visit_date"` // YYYY-MM-DD or an ISO instant
	TimeBlock  timeblock.Block `json:"time_block"`
	Status     VisitStatus     `json:"status"`
	Notes      string          `json:"notes,omitempty"`
	QRData     string          `json:"qr_data,omitempty"`
}

// ScheduleDefinition is a raw recurring-care schedule record.
type ScheduleDefinition struct {
	ScheduleID     string    `json:"schedule_id"`
	ResidentID     string    `json:"resident_id,omitempty"`
	Title          string    `json:"title"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"` // RRULE, e.g. FREQ=WEEKLY;BYDAY=MO,WE
	ActivityName   string    `json:"activity_name,omitempty"`
	Staff          string    `json:"staff,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

// ScheduleOccurrence is one concrete expansion of a definition onto a
// date. Recomputed on every aggregation pass, never persisted.
type ScheduleOccurrence struct {
	ScheduleDefinition
	OccurrenceDate string    // YYYY-MM-DD
	Start          time.Time // the occurrence's resolved start instant
	End            time.Time
}

// OccurrenceID is the synthesized identity the aggregator dedups on.
func (o ScheduleOccurrence) OccurrenceID() string {
	return o.ScheduleID + ":" + o.OccurrenceDate
}

// EventStatus is the lifecycle status of a facility event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "Upcoming"
	EventOngoing   EventStatus = "Ongoing"
	EventEnded     EventStatus = "Ended"
	EventCancelled EventStatus = "Cancelled"
)

// FacilityEvent is a facility-wide activity tied to a room.
type FacilityEvent struct {
	EventID   string      `json:"event_id"`
	RoomID    string      `json:"room_id"`
	Name      string      `json:"name"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Status    EventStatus `json:"status"`
	Location  string      `json:"location,omitempty"`
}

// EventKind distinguishes the two unified event kinds.
type EventKind string

const (
	KindCare  EventKind = "care"
	KindVisit EventKind = "visit"
)

// CalendarEvent is the unified merge target for all three sources.
// ID is globally unique after normalization (source-prefixed where the
// source ids could collide), so de-duplication by ID is safe. Date is a
// plain calendar date addressable by string equality against a day
// column. Confirmed is false only for optimistic pending inserts that
// the server has not acknowledged yet.
type CalendarEvent struct {
	ID         string          `json:"id"`
	Date       string          `json:"date"`
	TimeBlock  timeblock.Block `json:"time_block,omitempty"`
	Start      *time.Time      `json:"start,omitempty"`
	End        *time.Time      `json:"end,omitempty"`
	Kind       EventKind       `json:"kind"`
	ResidentID string          `json:"resident_id,omitempty"`
	Name       string          `json:"name"`
	Location   string          `json:"location,omitempty"`
	Staff      string          `json:"staff,omitempty"`
	Note       string          `json:"note,omitempty"`
	Confirmed  bool            `json:"confirmed"`
}

// Resident is a roster entry loaded from the resident collaborator.
type Resident struct {
	ResidentID string `json:"resident_id"`
	Name       string `json:"name"`
	RoomID     string `json:"room_id,omitempty"`
	RoomNumber string `json:"room_number,omitempty"`
}

// SlotCapacity is the externally supplied per-slot capacity record.
type SlotCapacity struct {
	Date      string          `json:"date"`
	TimeBlock timeblock.Block `json:"time_block"`
	Current   int             `json:"current"`
	Max       int             `json:"max"`
}

// AtCapacity reports whether the slot is full.
func (c SlotCapacity) AtCapacity() bool {
	return c.Max > 0 && c.Current >= c.Max
}

// SlotSuggestion is an alternative slot offered on a capacity conflict.
type SlotSuggestion struct {
	Date           string          `json:"date"`
	TimeBlock      timeblock.Block `json:"time_block"`
	AvailableSlots int             `json:"available_slots"`
}

// Availability is the derived per-slot eligibility state. Recomputed on
// every evaluation; never cached.
type Availability struct {
	IsPastDate          bool `json:"is_past_date"`
	IsBlockElapsedToday bool `json:"is_block_elapsed_today"`
	HasExistingBooking  bool `json:"has_existing_booking"`
	IsAtCapacity        bool `json:"is_at_capacity"`
	IsReadOnly          bool `json:"is_read_only"`

	// ResidentSelected mirrors whether a concrete resident scope was in
	// effect when the slot was resolved; booking requires it.
	ResidentSelected bool `json:"resident_selected"`

	// OccupiedBy carries the display name of a different resident whose
	// visit occupies the same room/date/block, when that name is
	// resolvable from the loaded roster. Informational only.
	OccupiedBy string `json:"occupied_by,omitempty"`
}

// Bookable is the single source of truth for both disabling a booking
// control and validating a booking attempt before submission.
func (a Availability) Bookable() bool {
	return a.ResidentSelected &&
		!a.IsPastDate &&
		!a.IsBlockElapsedToday &&
		!a.HasExistingBooking &&
		!a.IsAtCapacity &&
		!a.IsReadOnly
}

// Scope says whose calendar an operation targets.
type Scope struct {
	ResidentID string
}

// AllResidents is the unscoped view.
var AllResidents = Scope{}

// ForResident scopes to one resident.
func ForResident(id string) Scope { return Scope{ResidentID: id} }

// Specific reports whether a concrete resident is selected.
func (s Scope) Specific() bool { return s.ResidentID != "" }

// LocalDate renders an instant as its local calendar date. Conversion
// goes through local calendar fields, never a UTC string, so instants
// near midnight stay on their wall-clock day.
func LocalDate(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).Format(DateLayout)
}
