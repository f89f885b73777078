// Package plandate maps between calendar dates and the week/weekday coordinates of a training plan.
//
// Dates are civil dates represented as [time.Time] at midnight UTC, so adding days never crosses a daylight saving
// transition.
package plandate

import (
	"time"

	"github.com/myrjola/runcoach/internal/coach"
)

const (
	day        = 24 * time.Hour
	daysInWeek = 7
)

// Parse parses a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck // callers add context.
	}
	return t, nil
}

// Format renders the date as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Day returns the civil date of t in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves date by n days.
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}

// DaysBetween returns the number of days from a to b, negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / day)
}

// WeekdayOffset maps a weekday name to its offset from Monday. Unrecognised names map to Monday.
func WeekdayOffset(name coach.DayOfWeek) int {
	for i, d := range coach.Week {
		if d == name {
			return i
		}
	}
	return 0
}

// DayOfWeek returns the weekday name of date.
func DayOfWeek(date time.Time) coach.DayOfWeek {
	return coach.Week[(int(date.Weekday())+6)%daysInWeek]
}

// MondayOf returns the Monday on or before date.
func MondayOf(date time.Time) time.Time {
	return AddDays(Day(date), -WeekdayOffset(DayOfWeek(date)))
}

// SundayOf returns the Sunday on or after date.
func SundayOf(date time.Time) time.Time {
	return AddDays(MondayOf(date), daysInWeek-1)
}

// SessionDate returns the date of weekday in the given 1-indexed week of a plan starting on planStart.
func SessionDate(planStart time.Time, week int, weekday coach.DayOfWeek) time.Time {
	return AddDays(Day(planStart), (week-1)*daysInWeek+WeekdayOffset(weekday))
}

// WeekNumberOf returns the 1-indexed plan week containing date. ok is false before the plan starts.
func WeekNumberOf(planStart, date time.Time) (int, bool) {
	days := DaysBetween(planStart, date)
	if days < 0 {
		return 0, false
	}
	return days/daysInWeek + 1, true
}

// CurrentWeekNumber returns floor((today - planStart) / 7) + 1. It is zero or negative before the plan starts.
func CurrentWeekNumber(planStart, today time.Time) int {
	days := DaysBetween(planStart, today)
	weeks := days / daysInWeek
	if days < 0 && days%daysInWeek != 0 {
		weeks--
	}
	return weeks + 1
}
