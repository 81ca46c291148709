package calendar_test

import (
	"testing"
	"time"

	"resource-manager/internal/calendar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.Parse(s)
	require.NoError(t, err)
	return d
}

func TestIsWorkingDay(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2026-10-19", true},  // Monday
		{"2026-10-21", true},  // Wednesday
		{"2026-10-23", true},  // Friday
		{"2026-10-24", false}, // Saturday
		{"2026-10-25", false}, // Sunday
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, calendar.IsWorkingDay(day(t, tt.date)))
			assert.Equal(t, !tt.want, calendar.IsWeekend(day(t, tt.date)))
		})
	}
}

func TestNextWorkingDay(t *testing.T) {
	t.Run("Saturday rolls to Monday", func(t *testing.T) {
		assert.Equal(t, day(t, "2026-10-26"), calendar.NextWorkingDay(day(t, "2026-10-24")))
	})

	t.Run("Sunday rolls to Monday", func(t *testing.T) {
		assert.Equal(t, day(t, "2026-10-26"), calendar.NextWorkingDay(day(t, "2026-10-25")))
	})

	t.Run("weekday is unchanged", func(t *testing.T) {
		for _, s := range []string{"2026-10-19", "2026-10-20", "2026-10-23"} {
			assert.Equal(t, day(t, s), calendar.NextWorkingDay(day(t, s)))
		}
	})
}

func TestDateAndToday(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2026, 10, 17, 23, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), calendar.Date(ts))

	clock := func() time.Time { return ts }
	assert.Equal(t, "2026-10-17", calendar.Format(calendar.Today(clock)))
}

func TestParse_Invalid(t *testing.T) {
	_, err := calendar.Parse("17/10/2026")
	assert.Error(t, err)
}
