package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeetingTimeFlags(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	live := Meeting{
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}
	assert.True(t, live.IsCurrent(now))
	assert.False(t, live.IsPast(now))
	assert.True(t, live.IsToday(now))
	assert.False(t, live.IsTomorrow(now))

	ended := Meeting{
		StartTime: now.Add(-3 * time.Hour),
		EndTime:   now.Add(-time.Hour),
	}
	assert.False(t, ended.IsCurrent(now))
	assert.True(t, ended.IsPast(now))

	tomorrow := Meeting{
		StartTime: now.AddDate(0, 0, 1),
		EndTime:   now.AddDate(0, 0, 1).Add(time.Hour),
	}
	assert.False(t, tomorrow.IsCurrent(now))
	assert.True(t, tomorrow.IsTomorrow(now))
	assert.False(t, tomorrow.IsToday(now))

	yesterday := Meeting{
		StartTime: now.AddDate(0, 0, -1),
		EndTime:   now.AddDate(0, 0, -1).Add(time.Hour),
	}
	assert.False(t, yesterday.IsTomorrow(now))
	assert.True(t, yesterday.IsPast(now))

	// a meeting that just ended is past, one ending this instant is too
	boundary := Meeting{StartTime: now.Add(-time.Hour), EndTime: now}
	assert.True(t, boundary.IsPast(now))
	assert.False(t, boundary.IsCurrent(now))
}
