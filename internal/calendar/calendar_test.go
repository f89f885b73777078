package calendar_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/runcoach/internal/calendar"
	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/plandate"
	"github.com/myrjola/runcoach/internal/ptr"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := plandate.Parse(s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func week(n int, runs []coach.RunningSession, strength []coach.StrengthSession) coach.WeeklySchedule {
	return coach.WeeklySchedule{WeekNumber: n, PhaseName: "Base", RunningSessions: runs, StrengthSessions: strength}
}

func sessionsOn(m calendar.Month, key string) []calendar.Session {
	for _, d := range m.Days {
		if d.DateKey == key {
			return d.Sessions
		}
	}
	return nil
}

func TestBuildMonth_sessionDate(t *testing.T) {
	tempo := coach.RunningSession{Day: coach.Wednesday, RunType: coach.RunTempo, DistanceKm: 8}
	m := calendar.BuildMonth(calendar.Input{
		Schedules: []coach.WeeklySchedule{week(1, []coach.RunningSession{tempo}, nil)},
		PlanStart: date(t, "2024-01-01"),
		Year:      2024,
		Month:     time.January,
		Today:     date(t, "2024-01-02"),
	})

	want := []calendar.Session{calendar.Planned{DateKey: "2024-01-03", Running: &tempo}}
	if diff := cmp.Diff(want, sessionsOn(m, "2024-01-03")); diff != "" {
		t.Errorf("sessions on 2024-01-03 mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMonth_futureWeeksSuppressed(t *testing.T) {
	schedules := make([]coach.WeeklySchedule, 0, 5)
	for n := 1; n <= 5; n++ {
		schedules = append(schedules, week(n,
			[]coach.RunningSession{{Day: coach.Saturday, RunType: coach.RunLong, DistanceKm: float64(10 + n)}}, nil))
	}
	m := calendar.BuildMonth(calendar.Input{
		Schedules: schedules,
		PlanStart: date(t, "2024-01-01"),
		Year:      2024,
		Month:     time.January,
		Today:     date(t, "2024-01-20"),
	})

	for key, wantCount := range map[string]int{
		"2024-01-06": 1,
		"2024-01-13": 1,
		"2024-01-20": 1,
		"2024-01-27": 0,
		"2024-02-03": 0,
	} {
		if got := len(sessionsOn(m, key)); got != wantCount {
			t.Errorf("sessions on %s = %d, want %d", key, got, wantCount)
		}
	}
}

func TestBuildMonth_mergesStrengthIntoRun(t *testing.T) {
	easy := coach.RunningSession{Day: coach.Tuesday, RunType: coach.RunEasy, DistanceKm: 6}
	tuesdayGym := coach.StrengthSession{Day: coach.Tuesday, DurationMinutes: 30}
	fridayGym := coach.StrengthSession{Day: coach.Friday, DurationMinutes: 45}
	feedback := coach.SessionFeedback{ID: "f", SessionDate: "2024-01-05", CompletedAsPlanned: true}

	m := calendar.BuildMonth(calendar.Input{
		Schedules: []coach.WeeklySchedule{
			week(1, []coach.RunningSession{easy}, []coach.StrengthSession{tuesdayGym, fridayGym}),
		},
		PlanStart: date(t, "2024-01-01"),
		Year:      2024,
		Month:     time.January,
		Today:     date(t, "2024-01-01"),
		Feedback:  map[string]coach.SessionFeedback{"2024-01-05": feedback},
	})

	wantTuesday := []calendar.Session{calendar.Planned{DateKey: "2024-01-02", Running: &easy, Strength: &tuesdayGym}}
	if diff := cmp.Diff(wantTuesday, sessionsOn(m, "2024-01-02")); diff != "" {
		t.Errorf("Tuesday mismatch (-want +got):\n%s", diff)
	}
	wantFriday := []calendar.Session{
		calendar.Planned{DateKey: "2024-01-05", Strength: &fridayGym, Feedback: &feedback},
	}
	if diff := cmp.Diff(wantFriday, sessionsOn(m, "2024-01-05")); diff != "" {
		t.Errorf("Friday mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMonth_unplannedNeverMerged(t *testing.T) {
	easy := coach.RunningSession{Day: coach.Monday, RunType: coach.RunEasy, DistanceKm: 5}
	logged := []coach.UnplannedSession{
		{ID: "u1", Date: "2024-01-01", DistanceKm: 3},
		{ID: "u2", Date: "2024-01-01", DistanceKm: 4},
		{ID: "u3", Date: "2024-01-01", DistanceKm: 5},
	}
	m := calendar.BuildMonth(calendar.Input{
		Schedules: []coach.WeeklySchedule{week(1, []coach.RunningSession{easy}, nil)},
		PlanStart: date(t, "2024-01-01"),
		Year:      2024,
		Month:     time.January,
		Today:     date(t, "2024-01-01"),
		Unplanned: map[string][]coach.UnplannedSession{"2024-01-01": logged},
	})

	var day calendar.Day
	for _, d := range m.Days {
		if d.DateKey == "2024-01-01" {
			day = d
		}
	}
	kinds := make([]calendar.Kind, 0, len(day.Sessions))
	for _, s := range day.Sessions {
		kinds = append(kinds, s.Kind())
	}
	want := []calendar.Kind{calendar.KindPlanned, calendar.KindUnplanned, calendar.KindUnplanned, calendar.KindUnplanned}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("session kinds mismatch (-want +got):\n%s", diff)
	}
	if got := len(day.Visible()); got != calendar.MaxVisibleSessions {
		t.Errorf("Visible() = %d sessions, want %d", got, calendar.MaxVisibleSessions)
	}
	if got := day.Hidden(); got != 1 {
		t.Errorf("Hidden() = %d, want 1", got)
	}
}

func TestBuildMonth_grid(t *testing.T) {
	for year := 2023; year <= 2025; year++ {
		for month := time.January; month <= time.December; month++ {
			m := calendar.BuildMonth(calendar.Input{
				PlanStart: date(t, "2024-01-01"),
				Year:      year,
				Month:     month,
				Today:     date(t, "2024-06-15"),
			})
			if len(m.Days)%7 != 0 {
				t.Fatalf("%s: grid length %d is not a multiple of 7", m.Title(), len(m.Days))
			}
			if wd := m.Days[0].Date.Weekday(); wd != time.Monday {
				t.Errorf("%s: grid starts on %s", m.Title(), wd)
			}
			if wd := m.Days[len(m.Days)-1].Date.Weekday(); wd != time.Sunday {
				t.Errorf("%s: grid ends on %s", m.Title(), wd)
			}
			inMonth := 0
			for i, d := range m.Days {
				if i > 0 && plandate.DaysBetween(m.Days[i-1].Date, d.Date) != 1 {
					t.Fatalf("%s: days %s and %s are not consecutive", m.Title(), m.Days[i-1].DateKey, d.DateKey)
				}
				if d.InMonth {
					inMonth++
				}
			}
			daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
			if inMonth != daysInMonth {
				t.Errorf("%s: %d days in month, want %d", m.Title(), inMonth, daysInMonth)
			}
			if len(m.Weeks()) != len(m.Days)/7 {
				t.Errorf("%s: Weeks() returned %d rows", m.Title(), len(m.Weeks()))
			}
		}
	}
}

func TestBuildMonth_dayFlags(t *testing.T) {
	m := calendar.BuildMonth(calendar.Input{
		Schedules: []coach.WeeklySchedule{week(1, nil, nil), week(2, nil, nil)},
		PlanStart: date(t, "2024-01-08"),
		Year:      2024,
		Month:     time.January,
		Today:     date(t, "2024-01-10"),
	})

	byKey := make(map[string]calendar.Day, len(m.Days))
	for _, d := range m.Days {
		byKey[d.DateKey] = d
	}
	tests := []struct {
		key     string
		week    *int
		today   bool
		past    bool
		inMonth bool
	}{
		{"2024-01-01", nil, false, true, true},
		{"2024-01-08", ptr.Ref(1), false, true, true},
		{"2024-01-10", ptr.Ref(1), true, false, true},
		{"2024-01-21", ptr.Ref(2), false, false, true},
		// Beyond the generated weeks.
		{"2024-01-22", nil, false, false, true},
		{"2024-02-04", nil, false, false, false},
	}
	for _, tt := range tests {
		d, ok := byKey[tt.key]
		if !ok {
			t.Fatalf("%s missing from grid", tt.key)
		}
		if diff := cmp.Diff(tt.week, d.WeekNumber); diff != "" {
			t.Errorf("%s week number mismatch (-want +got):\n%s", tt.key, diff)
		}
		if d.IsToday != tt.today || d.IsPast != tt.past || d.InMonth != tt.inMonth {
			t.Errorf("%s flags today=%v past=%v inMonth=%v, want %v %v %v",
				tt.key, d.IsToday, d.IsPast, d.InMonth, tt.today, tt.past, tt.inMonth)
		}
	}
}

func TestMonthNavigation(t *testing.T) {
	if y, m := calendar.PrevMonth(2024, time.January); y != 2023 || m != time.December {
		t.Errorf("PrevMonth(2024-01) = %d-%s", y, m)
	}
	if y, m := calendar.NextMonth(2024, time.December); y != 2025 || m != time.January {
		t.Errorf("NextMonth(2024-12) = %d-%s", y, m)
	}
	if _, _, err := calendar.ParseMonth("2024-13"); err == nil {
		t.Error("ParseMonth(2024-13) succeeded")
	}
}

func TestCurrentWeek(t *testing.T) {
	planStart := date(t, "2024-01-01")
	schedules := []coach.WeeklySchedule{week(1, nil, nil), week(2, nil, nil)}
	tests := []struct {
		today string
		want  int
	}{
		{"2023-12-20", 1},
		{"2024-01-03", 1},
		{"2024-01-09", 2},
		{"2024-02-20", 2},
	}
	for _, tt := range tests {
		got, ok := calendar.CurrentWeek(schedules, planStart, date(t, tt.today))
		if !ok || got.WeekNumber != tt.want {
			t.Errorf("CurrentWeek(%s) = week %d, %v, want %d", tt.today, got.WeekNumber, ok, tt.want)
		}
	}
	if _, ok := calendar.CurrentWeek(nil, planStart, planStart); ok {
		t.Error("CurrentWeek(nil) ok = true")
	}
}

func TestWeekDays(t *testing.T) {
	schedule := week(2,
		[]coach.RunningSession{{Day: coach.Sunday, RunType: coach.RunLong, DistanceKm: 16}},
		[]coach.StrengthSession{{Day: coach.Wednesday, DurationMinutes: 40}})
	days := calendar.WeekDays(schedule, date(t, "2024-01-01"))
	if len(days) != 7 {
		t.Fatalf("WeekDays() returned %d days", len(days))
	}
	if days[0].Day != coach.Monday || !days[0].IsRest() || plandate.Format(days[0].Date) != "2024-01-08" {
		t.Errorf("Monday = %+v", days[0])
	}
	if len(days[2].Strength) != 1 || len(days[6].Running) != 1 {
		t.Errorf("sessions not grouped by weekday: %+v", days)
	}
}

func TestLegend(t *testing.T) {
	labels := make([]string, 0, 9)
	for _, e := range calendar.Legend() {
		labels = append(labels, e.Label)
	}
	want := []string{
		"Easy", "Recovery", "Long Run", "Tempo", "Interval", "Fartlek", "Race Simulation", "Strength", "Unplanned",
	}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("Legend() mismatch (-want +got):\n%s", diff)
	}
}
