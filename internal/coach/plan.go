package coach

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/myrjola/runcoach/internal/errors"
)

// ErrInvalidStrategy is returned by [TrainingStrategy.Validate].
var ErrInvalidStrategy = errors.NewSentinel("invalid training strategy")

type PhaseName string

const (
	PhaseBase  PhaseName = "Base"
	PhaseBuild PhaseName = "Build"
	PhasePeak  PhaseName = "Peak"
	PhaseTaper PhaseName = "Taper"
)

// rank orders the phases of a macroplan. Unknown phases rank zero.
func (p PhaseName) rank() int {
	switch p {
	case PhaseBase:
		return 1
	case PhaseBuild:
		return 2 //nolint:mnd // phase order.
	case PhasePeak:
		return 3 //nolint:mnd // phase order.
	case PhaseTaper:
		return 4 //nolint:mnd // phase order.
	default:
		return 0
	}
}

type PhaseStrategy struct {
	PhaseName     PhaseName `json:"phase_name"`
	DurationWeeks int       `json:"duration_weeks"`
	KeyFocus      string    `json:"key_focus"`
}

// TrainingStrategy is the macroplan: a phased outline of the whole training block.
type TrainingStrategy struct {
	PlanOverview       string          `json:"plan_overview"`
	TargetPeakVolumeKm float64         `json:"target_peak_volume_km"`
	TargetLongestRunKm float64         `json:"target_longest_run_km"`
	Phases             []PhaseStrategy `json:"phases"`
}

// TotalWeeks is the plan length implied by the phase durations.
func (s TrainingStrategy) TotalWeeks() int {
	total := 0
	for _, p := range s.Phases {
		total += p.DurationWeeks
	}
	return total
}

// PhaseSpan places a phase on the plan's week axis. Weeks are 1-indexed and inclusive.
type PhaseSpan struct {
	PhaseStrategy
	StartWeek int
	EndWeek   int
}

// PhaseSpans lays the phases out back to back starting from week 1.
func (s TrainingStrategy) PhaseSpans() []PhaseSpan {
	spans := make([]PhaseSpan, 0, len(s.Phases))
	week := 1
	for _, p := range s.Phases {
		spans = append(spans, PhaseSpan{PhaseStrategy: p, StartWeek: week, EndWeek: week + p.DurationWeeks - 1})
		week += p.DurationWeeks
	}
	return spans
}

// PhaseOf returns the phase covering week.
func (s TrainingStrategy) PhaseOf(week int) (PhaseSpan, bool) {
	for _, span := range s.PhaseSpans() {
		if week >= span.StartWeek && week <= span.EndWeek {
			return span, true
		}
	}
	return PhaseSpan{}, false
}

// Validate checks that the phases are known, non-empty and appear in Base, Build, Peak, Taper order.
func (s TrainingStrategy) Validate() error {
	if len(s.Phases) == 0 {
		return errors.Wrap(ErrInvalidStrategy, "no phases")
	}
	prev := 0
	for i, p := range s.Phases {
		attrs := []slog.Attr{slog.Int("index", i), slog.String("phase", string(p.PhaseName))}
		r := p.PhaseName.rank()
		switch {
		case r == 0:
			return errors.Wrap(ErrInvalidStrategy, "unknown phase", attrs...)
		case p.DurationWeeks <= 0:
			return errors.Wrap(ErrInvalidStrategy, "phase without duration", attrs...)
		case r < prev:
			return errors.Wrap(ErrInvalidStrategy, "phase out of order", attrs...)
		}
		prev = r
	}
	return nil
}

type RunningSession struct {
	Day                DayOfWeek `json:"day"`
	RunType            RunType   `json:"run_type"`
	DistanceKm         float64   `json:"distance_km"`
	WorkoutDescription string    `json:"workout_description"`
	Notes              string    `json:"notes,omitempty"`
}

type Exercise struct {
	Name   string `json:"name"`
	Series int    `json:"series"`
	Reps   *int   `json:"reps,omitempty"`
	// Hold is the isometric hold in seconds.
	Hold   *int `json:"hold,omitempty"`
	Weight *int `json:"weight,omitempty"`
	// Recovery is the rest between sets in seconds.
	Recovery int    `json:"recovery"`
	FormCues string `json:"form_cues"`
}

// SetsReps summarises the prescription, e.g. "3 x 10 reps" or "3 x 30s hold". A hold takes precedence over reps.
func (e Exercise) SetsReps() string {
	switch {
	case e.Hold != nil && *e.Hold > 0:
		return fmt.Sprintf("%d x %ds hold", e.Series, *e.Hold)
	case e.Reps != nil && *e.Reps > 0:
		return fmt.Sprintf("%d x %d reps", e.Series, *e.Reps)
	default:
		return strconv.Itoa(e.Series) + " sets"
	}
}

type StrengthSession struct {
	Day             DayOfWeek  `json:"day"`
	DurationMinutes int        `json:"duration_minutes"`
	Exercises       []Exercise `json:"exercises"`
}

// WeeklySchedule is one generated week of the plan.
type WeeklySchedule struct {
	WeekNumber          int               `json:"week_number"`
	PhaseName           string            `json:"phase_name"`
	WeeklyVolumeTarget  float64           `json:"weekly_volume_target"`
	WeeklyLongRunTarget float64           `json:"weekly_long_run_target"`
	WeekOverview        string            `json:"week_overview"`
	RunningSessions     []RunningSession  `json:"running_sessions"`
	StrengthSessions    []StrengthSession `json:"strength_sessions"`
}

// TotalDistance sums the distance of the running sessions in kilometres.
func (w WeeklySchedule) TotalDistance() float64 {
	total := 0.0
	for _, s := range w.RunningSessions {
		total += s.DistanceKm
	}
	return total
}
