package coach

// SessionFeedback is the runner's reflection on the session of one calendar day.
type SessionFeedback struct {
	ID          string `json:"id"`
	SessionDate string `json:"sessionDate"`
	// Heart rates are in beats per minute.
	AvgHeartRate *int `json:"avgHeartRate,omitempty"`
	MaxHeartRate *int `json:"maxHeartRate,omitempty"`
	// PerceivedExertion is on a 1 to 10 scale.
	PerceivedExertion  *int   `json:"perceivedExertion,omitempty"`
	Notes              string `json:"notes,omitempty"`
	CompletedAsPlanned bool   `json:"completedAsPlanned"`
}

// IntervalSet is a block of repeats within an unplanned session.
type IntervalSet struct {
	Reps           int    `json:"reps"`
	DistanceMeters int    `json:"distance_meters"`
	TargetPace     string `json:"targetPace,omitempty"`
	// RecoverySeconds is the rest between repeats.
	RecoverySeconds *int `json:"recoverySeconds,omitempty"`
}

// UnplannedSession is a run logged by the runner that was not part of the plan.
type UnplannedSession struct {
	ID              string        `json:"id"`
	Date            string        `json:"date"`
	DistanceKm      float64       `json:"distance_km"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	AvgPace         string        `json:"avgPace,omitempty"`
	Intervals       []IntervalSet `json:"intervals,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	RunType         RunType       `json:"run_type,omitempty"`
}
