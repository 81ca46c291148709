// Package schedule turns an effort estimate into a committed working-day date range.
package schedule

import (
	"time"

	"resource-manager/internal/calendar"
)

// DefaultHoursPerDay is the daily capacity of a single resource.
const DefaultHoursPerDay = 7

// Range is the committed date range shared by every assignment of one roster.
// Start is the effective start (weekend starts are rolled to Monday).
type Range struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DaysNeeded int       `json:"daysNeeded"`
}

type Engine struct {
	hoursPerDay int
}

// New returns an Engine using hoursPerDay per resource; non-positive values fall back to DefaultHoursPerDay.
func New(hoursPerDay int) *Engine {
	if hoursPerDay <= 0 {
		hoursPerDay = DefaultHoursPerDay
	}
	return &Engine{hoursPerDay: hoursPerDay}
}

func (e *Engine) HoursPerDay() int {
	return e.hoursPerDay
}

// DailyCapacity is hoursPerDay times the resource count, with zero resources counted as one.
func (e *Engine) DailyCapacity(resourceCount int) int {
	return e.hoursPerDay * max(resourceCount, 1)
}

// DaysNeeded is ceil(hoursEstimate / DailyCapacity(resourceCount)).
func (e *Engine) DaysNeeded(hoursEstimate, resourceCount int) int {
	capacity := e.DailyCapacity(resourceCount)
	return (hoursEstimate + capacity - 1) / capacity
}

// Compute advances DaysNeeded working days past the effective start date.
// One day needed always lands on the working day after the start, never on the start itself.
func (e *Engine) Compute(startDate time.Time, hoursEstimate, resourceCount int) Range {
	start := calendar.Date(startDate)
	if calendar.IsWeekend(start) {
		start = calendar.NextWorkingDay(start)
	}

	days := e.DaysNeeded(hoursEstimate, resourceCount)
	cursor := start
	for i := 0; i < days; i++ {
		if calendar.IsWeekend(cursor) {
			cursor = calendar.NextWorkingDay(cursor)
		}
		cursor = cursor.AddDate(0, 0, 1)
		for calendar.IsWeekend(cursor) {
			cursor = cursor.AddDate(0, 0, 1)
		}
	}

	return Range{Start: start, End: cursor, DaysNeeded: days}
}

// ComputeEndDate is Compute with the default per-resource capacity.
func ComputeEndDate(startDate time.Time, hoursEstimate, resourceCount int) time.Time {
	return New(DefaultHoursPerDay).Compute(startDate, hoursEstimate, resourceCount).End
}
