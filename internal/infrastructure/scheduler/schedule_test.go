package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(15 * time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(15*time.Minute), s.Next(now))
	assert.Equal(t, "@every 15m0s", s.String())
}

func TestDailyAtSchedule_SameDayWhenStillAhead(t *testing.T) {
	s := NewDailyAtSchedule(4, 30)
	now := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)

	next := s.Next(now)
	assert.Equal(t, time.Date(2025, 6, 1, 4, 30, 0, 0, time.UTC), next)
}

func TestDailyAtSchedule_RollsToNextDay(t *testing.T) {
	s := NewDailyAtSchedule(4, 30)

	// Already past today's slot.
	now := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC), s.Next(now))

	// Exactly at the slot still rolls over; Next is strictly after t.
	now = time.Date(2025, 6, 1, 4, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC), s.Next(now))
}

func TestDailyAtSchedule_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+6", 6*3600)
	s := NewDailyAtSchedule(9, 0)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, loc)

	next := s.Next(now)
	assert.Equal(t, loc, next.Location())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, "@daily 09:00", s.String())
}

func TestDailyAtSchedule_MonthBoundary(t *testing.T) {
	s := NewDailyAtSchedule(0, 0)
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), s.Next(now))
}
