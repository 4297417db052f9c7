package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBounds(t *testing.T) {
	start := time.Date(2026, 8, 27, 10, 30, 0, 0, time.UTC)
	gotStart, gotEnd := Bounds(start)

	assert.Equal(t, start, gotStart)
	assert.Equal(t, start.Add(24*time.Hour), gotEnd)
}

func TestActive(t *testing.T) {
	start := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

	assert.True(t, Active(start, start.Add(2*time.Hour)))
	assert.True(t, Active(start, start.Add(24*time.Hour-time.Second)))
	assert.False(t, Active(start, start.Add(24*time.Hour)))
	assert.False(t, Active(start, start.Add(25*time.Hour)))
}

func TestYearMonth(t *testing.T) {
	assert.Equal(t, "2026-08", YearMonth(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))

	// Local time just before midnight UTC rolls into the next month bucket.
	loc := time.FixedZone("UTC-3", -3*60*60)
	assert.Equal(t, "2026-09", YearMonth(time.Date(2026, 8, 31, 22, 0, 0, 0, loc)))
}

func TestIsExcess(t *testing.T) {
	assert.False(t, IsExcess(9, 10))
	assert.True(t, IsExcess(10, 10))
	assert.True(t, IsExcess(11, 10))
	assert.False(t, IsExcess(1000, 0)) // unlimited plan
}

func TestReachesLimit(t *testing.T) {
	assert.True(t, ReachesLimit(10, 10))
	assert.False(t, ReachesLimit(9, 10))
	assert.False(t, ReachesLimit(11, 10))
	assert.False(t, ReachesLimit(10, 0))
}
