package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecal/internal/model"
)

func weeklyDef() model.ScheduleDefinition {
	// Monday 2024-03-04 09:00, repeating Mon/Wed.
	return model.ScheduleDefinition{
		ScheduleID:     "sched-1",
		ResidentID:     "res-1",
		Title:          "Physiotherapy",
		StartTime:      time.Date(2024, 3, 4, 9, 0, 0, 0, time.Local),
		EndTime:        time.Date(2024, 3, 4, 9, 45, 0, 0, time.Local),
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO,WE",
	}
}

func TestExpandWeekly(t *testing.T) {
	var e Expander
	occs, err := e.Expand(weeklyDef(),
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 17, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)

	require.Len(t, occs, 2)
	assert.Equal(t, "2024-03-11", occs[0].OccurrenceDate)
	assert.Equal(t, "2024-03-13", occs[1].OccurrenceDate)

	// Clock time and duration carry over from the definition.
	assert.Equal(t, 9, occs[0].Start.Hour())
	assert.Equal(t, 45*time.Minute, occs[0].End.Sub(occs[0].Start))
	assert.Equal(t, "sched-1:2024-03-11", occs[0].OccurrenceID())
}

func TestExpandIdempotent(t *testing.T) {
	var e Expander
	ws := time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local)
	we := time.Date(2024, 3, 31, 0, 0, 0, 0, time.Local)

	first, err := e.Expand(weeklyDef(), ws, we)
	require.NoError(t, err)
	second, err := e.Expand(weeklyDef(), ws, we)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExpandWindowEndInclusive(t *testing.T) {
	var e Expander
	def := weeklyDef()

	// Window ends on a Wednesday; the 09:00 occurrence on that final
	// calendar day is included even though the window end is midnight.
	occs, err := e.Expand(def,
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 13, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, "2024-03-13", occs[1].OccurrenceDate)

	// The day after the window end is excluded.
	occs, err = e.Expand(def,
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, "2024-03-11", occs[0].OccurrenceDate)
}

func TestExpandSingleOccurrence(t *testing.T) {
	var e Expander
	def := weeklyDef()
	def.RecurrenceRule = ""

	// Inside the window: exactly one occurrence.
	occs, err := e.Expand(def,
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, "2024-03-04", occs[0].OccurrenceDate)

	// Outside the window: none.
	occs, err = e.Expand(def,
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 17, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestExpandDailyInterval(t *testing.T) {
	var e Expander
	def := weeklyDef()
	def.RecurrenceRule = "FREQ=DAILY;INTERVAL=2"

	occs, err := e.Expand(def,
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, occs, 4)
	assert.Equal(t, "2024-03-04", occs[0].OccurrenceDate)
	assert.Equal(t, "2024-03-06", occs[1].OccurrenceDate)
	assert.Equal(t, "2024-03-08", occs[2].OccurrenceDate)
	assert.Equal(t, "2024-03-10", occs[3].OccurrenceDate)
}

func TestExpandBadRule(t *testing.T) {
	var e Expander
	def := weeklyDef()
	def.RecurrenceRule = "FREQ=SOMETIMES"

	_, err := e.Expand(def,
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local))
	assert.Error(t, err)
}

func TestExpandInvertedWindow(t *testing.T) {
	var e Expander
	_, err := e.Expand(weeklyDef(),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local))
	assert.Error(t, err)
}

func TestExpandOccurrenceCap(t *testing.T) {
	e := Expander{MaxOccurrences: 3}
	def := weeklyDef()
	def.RecurrenceRule = "FREQ=DAILY"

	occs, err := e.Expand(def,
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Len(t, occs, 3)
}

func TestExpandAllConcatenatesInOrder(t *testing.T) {
	var e Expander
	a := weeklyDef()
	b := weeklyDef()
	b.ScheduleID = "sched-2"
	b.RecurrenceRule = ""

	occs, err := e.ExpandAll([]model.ScheduleDefinition{a, b},
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local),
		time.Date(2024, 3, 6, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, "sched-1", occs[0].ScheduleID)
	assert.Equal(t, "sched-2", occs[2].ScheduleID)
}
