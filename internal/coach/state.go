package coach

import (
	"encoding/json"

	"github.com/myrjola/runcoach/internal/errors"
)

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeWarning  Outcome = "warning"
	OutcomeRejected Outcome = "rejected"
)

// Proposal is a profile change suggested by the verifier to make the goal attainable.
type Proposal struct {
	Description    string `json:"description"`
	Reason         string `json:"reason"`
	NewGoal        Goal   `json:"-"`
	NewDaysPerWeek *int   `json:"new_days_per_week,omitempty"`
}

func (p Proposal) MarshalJSON() ([]byte, error) {
	type plain Proposal
	goal, err := MarshalGoal(p.NewGoal)
	if err != nil {
		return nil, err
	}
	if p.NewGoal == nil {
		goal = nil
	}
	return json.Marshal(struct {
		plain
		NewGoal json.RawMessage `json:"new_goal,omitempty"`
	}{plain(p), goal})
}

func (p *Proposal) UnmarshalJSON(data []byte) error {
	type plain Proposal
	var aux struct {
		plain
		NewGoal json.RawMessage `json:"new_goal"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "unmarshal proposal")
	}
	*p = Proposal(aux.plain)
	var err error
	p.NewGoal, err = UnmarshalGoal(aux.NewGoal)
	return err
}

// VerificationResult is the verifier's assessment of a submitted profile. When the verification job failed only
// Error is set.
type VerificationResult struct {
	Outcome   Outcome    `json:"outcome,omitempty"`
	Message   string     `json:"message,omitempty"`
	Proposals []Proposal `json:"proposals,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// NeedsDecision reports whether the runner must pick a proposal or force the plan generation.
func (r *VerificationResult) NeedsDecision() bool {
	return r != nil && (r.Outcome == OutcomeWarning || r.Outcome == OutcomeRejected)
}

// VerificationStatus is the body of the verification polling endpoint.
type VerificationStatus struct {
	Status Status              `json:"status"`
	Result *VerificationResult `json:"result"`
}

// UserState aggregates everything the backend knows about the runner's onboarding and plan.
type UserState struct {
	HasProfile         bool                `json:"has_profile"`
	Profile            *UserProfile        `json:"profile,omitempty"`
	PlanStartDate      string              `json:"plan_start_date,omitempty"`
	VerificationStatus Status              `json:"verification_status"`
	VerificationResult *VerificationResult `json:"verification_result,omitempty"`
	MacroplanStatus    Status              `json:"macroplan_status"`
	TrainingOverview   *TrainingStrategy   `json:"training_overview,omitempty"`
	WeeklyPlanStatus   Status              `json:"weekly_plan_status"`
	WeeklySchedules    []WeeklySchedule    `json:"weekly_schedules,omitempty"`
}

// HasSchedules reports whether at least one week has been generated.
func (s *UserState) HasSchedules() bool {
	return s != nil && len(s.WeeklySchedules) > 0
}

// Pending reports whether any backend job is still running.
func (s *UserState) Pending() bool {
	if s == nil {
		return false
	}
	return s.VerificationStatus == StatusPending ||
		s.MacroplanStatus == StatusPending ||
		s.WeeklyPlanStatus == StatusPending
}
