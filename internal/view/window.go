// Package view owns the day/week cursor the calendar is rendered from.
package view

import "time"

// Mode selects between a single-day and a Monday-anchored week view.
type Mode string

const (
	ModeDay  Mode = "day"
	ModeWeek Mode = "week"
)

// Window is the resolved view window: the cursor, the mode, and the
// ordered days the window covers. Windows are values; navigation
// returns a new Window, never mutates in place.
type Window struct {
	Cursor time.Time
	Mode   Mode
	Days   []time.Time
}

// New builds a window at cursor. Any cursor produces a valid window.
func New(cursor time.Time, mode Mode) Window {
	if mode != ModeWeek {
		mode = ModeDay
	}
	w := Window{Cursor: cursor, Mode: mode}
	w.Days = computeDays(cursor, mode)
	return w
}

// Start returns the first day of the window at midnight.
func (w Window) Start() time.Time { return w.Days[0] }

// End returns the last day of the window at midnight. Callers that need
// an inclusive comparison boundary should normalize it to end-of-day.
func (w Window) End() time.Time { return w.Days[len(w.Days)-1] }

// Next shifts the cursor forward by one day or one week.
func (w Window) Next() Window { return w.shift(1) }

// Prev shifts the cursor backward by one day or one week.
func (w Window) Prev() Window { return w.shift(-1) }

// Today resets the cursor to now.
func (w Window) Today(now time.Time) Window { return New(now, w.Mode) }

// WithMode switches the mode keeping the cursor.
func (w Window) WithMode(mode Mode) Window { return New(w.Cursor, mode) }

// Contains reports whether a calendar date (YYYY-MM-DD) falls on one of
// the window's days.
func (w Window) Contains(date string) bool {
	for _, d := range w.Days {
		if d.Format("2006-01-02") == date {
			return true
		}
	}
	return false
}

func (w Window) shift(dir int) Window {
	step := 1
	if w.Mode == ModeWeek {
		step = 7
	}
	return New(w.Cursor.AddDate(0, 0, dir*step), w.Mode)
}

func computeDays(cursor time.Time, mode Mode) []time.Time {
	day := midnight(cursor)
	if mode == ModeDay {
		return []time.Time{day}
	}

	// Monday on or before the cursor.
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)

	days := make([]time.Time, 7)
	for i := range days {
		days[i] = monday.AddDate(0, 0, i)
	}
	return days
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
