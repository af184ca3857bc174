package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveClassStatus(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	base := Class{StartDate: start, EndDate: end, TotalSessions: 10}

	cases := []struct {
		name    string
		now     time.Time
		current int
		cancel  bool
		want    ClassStatus
	}{
		{"before start", start.Add(-time.Hour), 0, false, ClassUpcoming},
		{"on start day", start, 0, false, ClassOngoing},
		{"inside range", start.AddDate(0, 0, 10), 4, false, ClassOngoing},
		{"on end day", end, 9, false, ClassOngoing},
		{"after end", end.Add(time.Hour), 3, false, ClassCompleted},
		{"all sessions held", start.AddDate(0, 0, 20), 10, false, ClassCompleted},
		{"cancelled before start", start.Add(-time.Hour), 0, true, ClassCancelled},
		{"cancelled after end", end.Add(time.Hour), 10, true, ClassCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			c.CurrentSession = tc.current
			c.IsCancelled = tc.cancel
			assert.Equal(t, tc.want, DeriveClassStatus(tc.now, c))
			assert.Equal(t, tc.want, c.Status(tc.now))
		})
	}
}

func TestClassHasCapacity(t *testing.T) {
	assert.True(t, Class{MaxMembers: 1}.HasCapacity())
	assert.False(t, Class{MaxMembers: 1, CurrentMembers: 1}.HasCapacity())
}

func TestAttendanceRate(t *testing.T) {
	assert.Equal(t, 0.0, AttendanceRate(3, 0))
	assert.InDelta(t, 30.0, AttendanceRate(3, 10), 1e-9)
	assert.InDelta(t, 100.0, AttendanceRate(12, 12), 1e-9)
}
