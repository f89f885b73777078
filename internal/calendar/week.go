package calendar

import (
	"time"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/plandate"
)

// CurrentWeek picks the schedule to show as "this week": the schedule of the current plan week, otherwise the
// latest week that has started, otherwise the earliest generated week.
func CurrentWeek(schedules []coach.WeeklySchedule, planStart, today time.Time) (coach.WeeklySchedule, bool) {
	if len(schedules) == 0 {
		return coach.WeeklySchedule{}, false
	}
	current := plandate.CurrentWeekNumber(plandate.Day(planStart), plandate.Day(today))
	var (
		started  *coach.WeeklySchedule
		earliest = &schedules[0]
	)
	for i := range schedules {
		s := &schedules[i]
		if s.WeekNumber == current {
			return *s, true
		}
		if s.WeekNumber < current && (started == nil || s.WeekNumber > started.WeekNumber) {
			started = s
		}
		if s.WeekNumber < earliest.WeekNumber {
			earliest = s
		}
	}
	if started != nil {
		return *started, true
	}
	return *earliest, true
}

// WeekDay gathers a schedule's sessions on one weekday.
type WeekDay struct {
	Day      coach.DayOfWeek
	Date     time.Time
	Running  []coach.RunningSession
	Strength []coach.StrengthSession
}

// IsRest reports whether nothing is planned for the day.
func (d WeekDay) IsRest() bool {
	return len(d.Running) == 0 && len(d.Strength) == 0
}

// WeekDays groups schedule by weekday, Monday first, including rest days.
func WeekDays(schedule coach.WeeklySchedule, planStart time.Time) []WeekDay {
	days := make([]WeekDay, len(coach.Week))
	for i, name := range coach.Week {
		days[i] = WeekDay{
			Day:      name,
			Date:     plandate.SessionDate(planStart, schedule.WeekNumber, name),
			Running:  nil,
			Strength: nil,
		}
	}
	for _, run := range schedule.RunningSessions {
		i := plandate.WeekdayOffset(run.Day)
		days[i].Running = append(days[i].Running, run)
	}
	for _, strength := range schedule.StrengthSessions {
		i := plandate.WeekdayOffset(strength.Day)
		days[i].Strength = append(days[i].Strength, strength)
	}
	return days
}

// LegendEntry describes one colour of the calendar.
type LegendEntry struct {
	Class string
	Label string
}

// Legend lists the run types in fixed order followed by strength and unplanned sessions.
func Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, len(coach.RunTypes)+2) //nolint:mnd // strength and unplanned.
	for _, r := range coach.RunTypes {
		entries = append(entries, LegendEntry{Class: RunClass(r), Label: r.Label()})
	}
	return append(entries,
		LegendEntry{Class: "session-strength", Label: "Strength"},
		LegendEntry{Class: "session-unplanned", Label: "Unplanned"},
	)
}

// RunClass is the CSS class of a run type. Unknown types are styled as easy runs.
func RunClass(r coach.RunType) string {
	if !r.Valid() {
		r = coach.RunEasy
	}
	return "run-" + string(r)
}
