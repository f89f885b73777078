// Package sessionlog turns the feedback and unplanned-session forms into records and keeps them in the local
// database.
package sessionlog

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/ptr"
)

// FeedbackForm holds what the runner reported about one calendar day.
type FeedbackForm struct {
	Date               string
	AvgHeartRate       string
	MaxHeartRate       string
	PerceivedExertion  int
	Notes              string
	CompletedAsPlanned bool
}

// NewFeedbackForm returns the form for date, pre-filled from existing when the day already has feedback.
func NewFeedbackForm(date string, existing *coach.SessionFeedback) FeedbackForm {
	if existing == nil {
		return FeedbackForm{Date: date, CompletedAsPlanned: true}
	}
	return FeedbackForm{
		Date:               date,
		AvgHeartRate:       optionalInt(existing.AvgHeartRate),
		MaxHeartRate:       optionalInt(existing.MaxHeartRate),
		PerceivedExertion:  ptr.Deref(existing.PerceivedExertion, 0),
		Notes:              existing.Notes,
		CompletedAsPlanned: existing.CompletedAsPlanned,
	}
}

func optionalInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// Decode reads the posted fields.
func (f *FeedbackForm) Decode(values url.Values) {
	f.AvgHeartRate = strings.TrimSpace(values.Get("avg_heart_rate"))
	f.MaxHeartRate = strings.TrimSpace(values.Get("max_heart_rate"))
	f.PerceivedExertion = 0
	if n, err := strconv.Atoi(values.Get("perceived_exertion")); err == nil && n >= 1 && n <= 10 {
		f.PerceivedExertion = n
	}
	f.Notes = values.Get("notes")
	f.CompletedAsPlanned = values.Get("completed_as_planned") != "no"
}

// Feedback converts the form to a record. Empty or non-positive heart rates and an unset exertion are left out.
func (f FeedbackForm) Feedback() coach.SessionFeedback {
	return coach.SessionFeedback{
		SessionDate:        f.Date,
		AvgHeartRate:       positiveInt(f.AvgHeartRate),
		MaxHeartRate:       positiveInt(f.MaxHeartRate),
		PerceivedExertion:  ptr.NonZero(f.PerceivedExertion),
		Notes:              strings.TrimSpace(f.Notes),
		CompletedAsPlanned: f.CompletedAsPlanned,
	}
}

func positiveInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// ExertionScale lists the selectable perceived exertion values.
func ExertionScale() []int {
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
}

const (
	defaultIntervalReps     = 1
	defaultIntervalDistance = 400
	fallbackIntervalMeters  = 100
)

// UnplannedForm holds a run logged outside the plan while the runner edits it.
type UnplannedForm struct {
	Date            string
	Distance        string
	DurationMinutes string
	AvgPace         string
	RunType         coach.RunType
	Notes           string
	HasIntervals    bool
	Intervals       []coach.IntervalSet
	Errors          map[string]string
}

// NewUnplannedForm returns an empty form for date.
func NewUnplannedForm(date string) UnplannedForm {
	return UnplannedForm{Date: date}
}

// UnplannedRunTypes lists the run types offered when logging an unplanned session.
func UnplannedRunTypes() []coach.RunType {
	return slices.DeleteFunc(slices.Clone(coach.RunTypes), func(r coach.RunType) bool {
		return r == coach.RunRaceSimulation
	})
}

// Decode reads the posted fields. Interval fields are posted as parallel lists in display order.
func (f *UnplannedForm) Decode(values url.Values) {
	f.Distance = strings.TrimSpace(values.Get("distance_km"))
	f.DurationMinutes = strings.TrimSpace(values.Get("duration_minutes"))
	f.AvgPace = strings.TrimSpace(values.Get("avg_pace"))
	f.RunType = coach.RunType(values.Get("run_type"))
	if !f.RunType.Valid() {
		f.RunType = ""
	}
	f.Notes = values.Get("notes")
	f.HasIntervals = values.Get("has_intervals") == "on"

	reps := values["interval_reps"]
	f.Intervals = make([]coach.IntervalSet, len(reps))
	for i := range reps {
		f.Intervals[i] = coach.IntervalSet{
			Reps:            intOr(reps[i], defaultIntervalReps),
			DistanceMeters:  intOr(at(values["interval_distance"], i), fallbackIntervalMeters),
			TargetPace:      strings.TrimSpace(at(values["interval_pace"], i)),
			RecoverySeconds: nonNegativeInt(at(values["interval_recovery"], i)),
		}
	}
}

func at(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	return ""
}

func intOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func nonNegativeInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// AddInterval appends a 1 x 400 m interval set and switches intervals on.
func (f *UnplannedForm) AddInterval() {
	f.HasIntervals = true
	f.Intervals = append(f.Intervals, coach.IntervalSet{Reps: defaultIntervalReps, DistanceMeters: defaultIntervalDistance})
}

// RemoveInterval drops the interval set at index i. Out of range indexes are ignored.
func (f *UnplannedForm) RemoveInterval(i int) {
	if i < 0 || i >= len(f.Intervals) {
		return
	}
	f.Intervals = slices.Delete(f.Intervals, i, i+1)
}

// Session validates the form and converts it to a record. The only rule is a positive distance.
func (f *UnplannedForm) Session() (coach.UnplannedSession, bool) {
	distance, err := strconv.ParseFloat(f.Distance, 64)
	if err != nil || distance <= 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		f.Errors = map[string]string{"distance_km": "Distance must be a positive number"}
		return coach.UnplannedSession{}, false
	}
	f.Errors = nil

	s := coach.UnplannedSession{
		Date:            f.Date,
		DistanceKm:      distance,
		DurationMinutes: positiveInt(f.DurationMinutes),
		AvgPace:         f.AvgPace,
		Notes:           strings.TrimSpace(f.Notes),
		RunType:         f.RunType,
	}
	if f.HasIntervals && len(f.Intervals) > 0 {
		s.Intervals = slices.Clone(f.Intervals)
	}
	return s, true
}
