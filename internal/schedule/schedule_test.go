package schedule_test

import (
	"testing"
	"time"

	"resource-manager/internal/calendar"
	"resource-manager/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.Parse(s)
	require.NoError(t, err)
	return d
}

func TestEngine_Compute(t *testing.T) {
	engine := schedule.New(schedule.DefaultHoursPerDay)

	tests := []struct {
		name      string
		start     string
		hours     int
		resources int
		wantStart string
		wantEnd   string
		wantDays  int
	}{
		{"Monday one day", "2026-10-19", 7, 1, "2026-10-19", "2026-10-20", 1},
		{"Monday partial day rounds up", "2026-10-19", 1, 1, "2026-10-19", "2026-10-20", 1},
		{"Friday one day crosses weekend", "2026-10-23", 7, 1, "2026-10-23", "2026-10-26", 1},
		{"Saturday start rolls to Monday", "2026-10-24", 7, 1, "2026-10-26", "2026-10-27", 1},
		{"Sunday start rolls to Monday", "2026-10-25", 14, 1, "2026-10-26", "2026-10-28", 2},
		// 8 working days added on top of Monday: Tue..Fri, then Mon..Thu of the next week.
		{"Monday 56 hours spans following week", "2026-10-19", 56, 1, "2026-10-19", "2026-10-29", 8},
		{"two resources halve the duration", "2026-10-19", 56, 2, "2026-10-19", "2026-10-23", 4},
		{"zero resources treated as one", "2026-10-19", 7, 0, "2026-10-19", "2026-10-20", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Compute(day(t, tt.start), tt.hours, tt.resources)

			assert.Equal(t, tt.wantStart, calendar.Format(got.Start))
			assert.Equal(t, tt.wantEnd, calendar.Format(got.End))
			assert.Equal(t, tt.wantDays, got.DaysNeeded)
		})
	}
}

func TestEngine_EndAlwaysAfterStartOnWorkingDay(t *testing.T) {
	engine := schedule.New(0)
	base := day(t, "2026-10-17")

	for offset := 0; offset < 14; offset++ {
		start := base.AddDate(0, 0, offset)
		for hours := 1; hours <= 80; hours += 3 {
			for resources := 1; resources <= 4; resources++ {
				got := engine.Compute(start, hours, resources)

				assert.True(t, got.End.After(got.Start), "start=%s hours=%d resources=%d", calendar.Format(start), hours, resources)
				assert.True(t, calendar.IsWorkingDay(got.End), "end %s is not a working day", calendar.Format(got.End))
				assert.True(t, calendar.IsWorkingDay(got.Start), "start %s is not a working day", calendar.Format(got.Start))
			}
		}
	}
}

func TestEngine_SameCapacitySameEndDate(t *testing.T) {
	base := day(t, "2026-10-17")
	for offset := 0; offset < 7; offset++ {
		start := base.AddDate(0, 0, offset)
		assert.Equal(t,
			schedule.ComputeEndDate(start, 7, 1),
			schedule.ComputeEndDate(start, 14, 2),
		)
	}
}

func TestEngine_Capacity(t *testing.T) {
	engine := schedule.New(8)

	assert.Equal(t, 8, engine.HoursPerDay())
	assert.Equal(t, 8, engine.DailyCapacity(0))
	assert.Equal(t, 24, engine.DailyCapacity(3))
	assert.Equal(t, 2, engine.DaysNeeded(25, 2))
	assert.Equal(t, schedule.DefaultHoursPerDay, schedule.New(-1).HoursPerDay())
}

func TestEngine_NormalizesTimeOfDay(t *testing.T) {
	engine := schedule.New(schedule.DefaultHoursPerDay)
	start := time.Date(2026, 10, 19, 15, 45, 0, 0, time.UTC)

	got := engine.Compute(start, 7, 1)

	assert.Equal(t, day(t, "2026-10-19"), got.Start)
	assert.Equal(t, day(t, "2026-10-20"), got.End)
}
