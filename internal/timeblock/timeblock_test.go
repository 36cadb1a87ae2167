package timeblock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCatalogOrderAndRanges(t *testing.T) {
	all := All()
	assert.Len(t, all, 3)
	assert.Equal(t, Morning, all[0].Block)
	assert.Equal(t, Afternoon, all[1].Block)
	assert.Equal(t, Evening, all[2].Block)

	// Boundaries the availability resolver depends on.
	morning, _ := Get(Morning)
	afternoon, _ := Get(Afternoon)
	evening, _ := Get(Evening)
	assert.Equal(t, 720, morning.EndMinute)
	assert.Equal(t, 1080, afternoon.EndMinute)
	assert.Equal(t, 1320, evening.EndMinute)
}

func TestFromMinute(t *testing.T) {
	block, ok := FromMinute(9 * 60)
	assert.True(t, ok)
	assert.Equal(t, Morning, block)

	block, ok = FromMinute(14 * 60)
	assert.True(t, ok)
	assert.Equal(t, Afternoon, block)

	block, ok = FromMinute(20 * 60)
	assert.True(t, ok)
	assert.Equal(t, Evening, block)

	// The half-open upper bound excludes the end minute itself.
	_, ok = FromMinute(22 * 60)
	assert.False(t, ok)

	// Gaps between blocks map to nothing.
	_, ok = FromMinute(12*60 + 30)
	assert.False(t, ok)
}

func TestFromClock(t *testing.T) {
	block, ok := FromClock(time.Date(2024, 3, 11, 10, 15, 0, 0, time.Local))
	assert.True(t, ok)
	assert.Equal(t, Morning, block)
}

func TestElapsedAtBoundary(t *testing.T) {
	// 11:59 keeps morning open; 12:00 sharp closes it.
	assert.False(t, ElapsedAt(Morning, 11*60+59))
	assert.True(t, ElapsedAt(Morning, 12*60))
	assert.True(t, ElapsedAt(Morning, 12*60+1))

	assert.False(t, ElapsedAt(Afternoon, 17*60+59))
	assert.True(t, ElapsedAt(Afternoon, 18*60))
	assert.False(t, ElapsedAt(Evening, 21*60+59))
	assert.True(t, ElapsedAt(Evening, 22*60))
}

func TestParse(t *testing.T) {
	block, err := Parse("afternoon")
	assert.NoError(t, err)
	assert.Equal(t, Afternoon, block)

	_, err = Parse("midnight")
	assert.Error(t, err)
}

func TestLabelFallback(t *testing.T) {
	assert.Equal(t, "Morning Visit", Label(Morning))
	assert.Equal(t, "nap", Label(Block("nap")))
}
