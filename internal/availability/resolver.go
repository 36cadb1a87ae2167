// Package availability derives per-slot booking eligibility from the
// unified calendar and the current wall clock.
package availability

import (
	"time"

	"carecal/internal/model"
	"carecal/internal/timeblock"
)

// Input is everything one resolution needs. Resolution is a pure
// function of this value; it performs no I/O and may be repeated freely.
type Input struct {
	Scope    model.Scope
	Date     string // YYYY-MM-DD
	Block    timeblock.Block
	Events   []model.CalendarEvent
	Capacity []model.SlotCapacity
	Roster   []model.Resident

	// ReadOnly forces every slot non-bookable, e.g. when viewing a
	// calendar the session does not own.
	ReadOnly bool

	Now time.Time
}

// Resolve computes the eligibility state for one (resident, date, block)
// slot. Both the booking control and the pre-submission gate go through
// this same function.
func Resolve(in Input) model.Availability {
	a := model.Availability{
		IsReadOnly:       in.ReadOnly,
		ResidentSelected: in.Scope.Specific(),
	}

	today := model.LocalDate(in.Now)
	a.IsPastDate = in.Date < today

	if in.Date == today {
		minuteOfDay := in.Now.Hour()*60 + in.Now.Minute()
		a.IsBlockElapsedToday = timeblock.ElapsedAt(in.Block, minuteOfDay)
	}

	if in.Scope.Specific() {
		for _, ev := range in.Events {
			if ev.Kind == model.KindVisit &&
				ev.ResidentID == in.Scope.ResidentID &&
				ev.Date == in.Date &&
				ev.TimeBlock == in.Block {
				a.HasExistingBooking = true
				break
			}
		}
	}

	for _, c := range in.Capacity {
		if c.Date == in.Date && c.TimeBlock == in.Block {
			a.IsAtCapacity = c.AtCapacity()
			break
		}
	}

	a.OccupiedBy = occupiedBy(in)
	return a
}

// occupiedBy finds a different resident's visit occupying the same
// room, date, and block, whose display name resolves from the loaded
// roster. A visit by a resident housed in another room never occupies
// this room's slot. When either resident's room or the occupant's name
// is unresolvable, the indicator is suppressed entirely rather than
// shown on a partial match.
func occupiedBy(in Input) string {
	if !in.Scope.Specific() {
		return ""
	}
	byID := make(map[string]model.Resident, len(in.Roster))
	for _, r := range in.Roster {
		byID[r.ResidentID] = r
	}
	own, ok := byID[in.Scope.ResidentID]
	if !ok || own.RoomID == "" {
		return ""
	}
	for _, ev := range in.Events {
		if ev.Kind != model.KindVisit || ev.Date != in.Date || ev.TimeBlock != in.Block {
			continue
		}
		if ev.ResidentID == "" || ev.ResidentID == in.Scope.ResidentID {
			continue
		}
		other, ok := byID[ev.ResidentID]
		if !ok || other.RoomID == "" || other.RoomID != own.RoomID || other.Name == "" {
			continue
		}
		return other.Name
	}
	return ""
}

// DateComparable guards against malformed date input before string
// comparison; YYYY-MM-DD compares correctly lexicographically.
func DateComparable(date string) bool {
	_, err := time.Parse(model.DateLayout, date)
	return err == nil
}
