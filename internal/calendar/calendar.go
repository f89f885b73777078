// Package calendar merges the generated weekly schedules with the runner's own log into a month grid.
package calendar

import (
	"fmt"
	"time"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/plandate"
)

// MaxVisibleSessions is how many sessions a day cell lists before collapsing the rest.
const MaxVisibleSessions = 3

type Kind string

const (
	KindPlanned   Kind = "planned"
	KindUnplanned Kind = "unplanned"
)

// Session is either [Planned] or [Unplanned]. Use [MatchSession] to branch on it.
type Session interface {
	Kind() Kind
	isSession()
}

// Planned holds what the plan prescribes for a date. Running, Strength or both are set.
type Planned struct {
	DateKey  string
	Running  *coach.RunningSession
	Strength *coach.StrengthSession
	Feedback *coach.SessionFeedback
}

func (Planned) Kind() Kind { return KindPlanned }
func (Planned) isSession() {}

// Unplanned wraps a run the runner logged outside the plan.
type Unplanned struct {
	DateKey string
	Session coach.UnplannedSession
}

func (Unplanned) Kind() Kind { return KindUnplanned }
func (Unplanned) isSession() {}

// MatchSession calls the function matching the variant of s.
func MatchSession[T any](s Session, planned func(Planned) T, unplanned func(Unplanned) T) T {
	switch v := s.(type) {
	case Planned:
		return planned(v)
	case Unplanned:
		return unplanned(v)
	default:
		panic(fmt.Sprintf("calendar: unhandled session variant %T", s))
	}
}

// Day is one cell of the month grid.
type Day struct {
	Date    time.Time
	DateKey string
	InMonth bool
	IsToday bool
	IsPast  bool
	// WeekNumber is the plan week of the date, nil before the plan starts or beyond the generated weeks.
	WeekNumber *int
	Sessions   []Session
}

// Visible returns the sessions shown in the cell.
func (d Day) Visible() []Session {
	if len(d.Sessions) > MaxVisibleSessions {
		return d.Sessions[:MaxVisibleSessions]
	}
	return d.Sessions
}

// Hidden is the number of sessions collapsed into "+N more".
func (d Day) Hidden() int {
	return max(0, len(d.Sessions)-MaxVisibleSessions)
}

// Month is the display grid of a calendar month in whole Monday to Sunday weeks.
type Month struct {
	Year  int
	Month time.Month
	Days  []Day
}

// Weeks splits the grid into rows of seven days.
func (m Month) Weeks() [][]Day {
	weeks := make([][]Day, 0, len(m.Days)/7) //nolint:mnd // days in week.
	for i := 0; i+7 <= len(m.Days); i += 7 {
		weeks = append(weeks, m.Days[i:i+7])
	}
	return weeks
}

// Title renders e.g. "January 2024".
func (m Month) Title() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// Key renders the month as YYYY-MM.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Input collects everything a month grid is built from.
type Input struct {
	// Schedules are ordered by week number.
	Schedules []coach.WeeklySchedule
	// PlanStart is the Monday of week 1.
	PlanStart time.Time
	Year      int
	Month     time.Month
	Today     time.Time
	// Feedback and Unplanned are keyed by YYYY-MM-DD.
	Feedback  map[string]coach.SessionFeedback
	Unplanned map[string][]coach.UnplannedSession
}

// BuildMonth lays out the requested month. Only weeks that have started contribute sessions.
func BuildMonth(in Input) Month {
	today := plandate.Day(in.Today)
	planStart := plandate.Day(in.PlanStart)
	sessions := sessionsByDate(in, planStart, today)

	first := time.Date(in.Year, in.Month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start, end := plandate.MondayOf(first), plandate.SundayOf(last)

	m := Month{Year: first.Year(), Month: first.Month(), Days: nil}
	for d := start; !d.After(end); d = plandate.AddDays(d, 1) {
		key := plandate.Format(d)
		day := Day{
			Date:       d,
			DateKey:    key,
			InMonth:    d.Month() == first.Month(),
			IsToday:    d.Equal(today),
			IsPast:     d.Before(today),
			WeekNumber: nil,
			Sessions:   sessions[key],
		}
		if week, ok := plandate.WeekNumberOf(planStart, d); ok && week <= len(in.Schedules) {
			day.WeekNumber = &week
		}
		m.Days = append(m.Days, day)
	}
	return m
}

func sessionsByDate(in Input, planStart, today time.Time) map[string][]Session {
	byDate := make(map[string][]Session)
	currentWeek := plandate.CurrentWeekNumber(planStart, today)

	for _, schedule := range in.Schedules {
		if schedule.WeekNumber > currentWeek {
			continue
		}
		for _, run := range schedule.RunningSessions {
			key := plandate.Format(plandate.SessionDate(planStart, schedule.WeekNumber, run.Day))
			byDate[key] = append(byDate[key], Planned{
				DateKey:  key,
				Running:  &run,
				Strength: nil,
				Feedback: feedbackFor(in.Feedback, key),
			})
		}
		for _, strength := range schedule.StrengthSessions {
			key := plandate.Format(plandate.SessionDate(planStart, schedule.WeekNumber, strength.Day))
			if i := firstPlanned(byDate[key]); i >= 0 {
				p, _ := byDate[key][i].(Planned)
				p.Strength = &strength
				byDate[key][i] = p
				continue
			}
			byDate[key] = append(byDate[key], Planned{
				DateKey:  key,
				Running:  nil,
				Strength: &strength,
				Feedback: feedbackFor(in.Feedback, key),
			})
		}
	}

	for key, logged := range in.Unplanned {
		for _, u := range logged {
			byDate[key] = append(byDate[key], Unplanned{DateKey: key, Session: u})
		}
	}
	return byDate
}

func firstPlanned(sessions []Session) int {
	for i, s := range sessions {
		if s.Kind() == KindPlanned {
			return i
		}
	}
	return -1
}

func feedbackFor(feedback map[string]coach.SessionFeedback, key string) *coach.SessionFeedback {
	f, ok := feedback[key]
	if !ok {
		return nil
	}
	return &f
}

// PrevMonth returns the month before year-month.
func PrevMonth(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month-1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// NextMonth returns the month after year-month.
func NextMonth(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// ParseMonth parses YYYY-MM.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}
