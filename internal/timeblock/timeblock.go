// Package timeblock defines the fixed day-part catalog visits are booked
// against. The catalog is the single owner of block boundaries; every
// component that needs a minute boundary reads it from here.
package timeblock

import (
	"fmt"
	"time"
)

// Block identifies a named day-part.
type Block string

const (
	Morning   Block = "morning"
	Afternoon Block = "afternoon"
	Evening   Block = "evening"
)

// Range holds a block's clock-minute boundaries on a 1440-minute day.
// The range is half-open: a block covers [StartMinute, EndMinute).
type Range struct {
	Block       Block
	Label       string
	StartMinute int
	EndMinute   int
}

var catalog = []Range{
	{Block: Morning, Label: "Morning Visit", StartMinute: 8 * 60, EndMinute: 12 * 60},
	{Block: Afternoon, Label: "Afternoon Visit", StartMinute: 13 * 60, EndMinute: 18 * 60},
	{Block: Evening, Label: "Evening Visit", StartMinute: 18 * 60, EndMinute: 22 * 60},
}

// All returns the catalog in chronological order.
func All() []Range {
	out := make([]Range, len(catalog))
	copy(out, catalog)
	return out
}

// Get returns the range for a block.
func Get(b Block) (Range, bool) {
	for _, r := range catalog {
		if r.Block == b {
			return r, true
		}
	}
	return Range{}, false
}

// Label returns the display label for a block, or the block name itself
// when the block is unknown.
func Label(b Block) string {
	if r, ok := Get(b); ok {
		return r.Label
	}
	return string(b)
}

// FromMinute maps a minute-of-day to the block whose range contains it.
func FromMinute(minute int) (Block, bool) {
	for _, r := range catalog {
		if minute >= r.StartMinute && minute < r.EndMinute {
			return r.Block, true
		}
	}
	return "", false
}

// FromClock maps a wall-clock time to a block by its local minute-of-day.
func FromClock(t time.Time) (Block, bool) {
	return FromMinute(t.Hour()*60 + t.Minute())
}

// Parse validates a block name.
func Parse(s string) (Block, error) {
	b := Block(s)
	if _, ok := Get(b); !ok {
		return "", fmt.Errorf("unknown time block %q", s)
	}
	return b, nil
}

// ElapsedAt reports whether the block's booking window has closed by the
// given minute-of-day. The boundary is half-open: at exactly EndMinute
// the block counts as elapsed.
func ElapsedAt(b Block, minuteOfDay int) bool {
	r, ok := Get(b)
	if !ok {
		return false
	}
	return minuteOfDay >= r.EndMinute
}
