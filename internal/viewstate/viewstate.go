// Package viewstate decides which page the runner sees from the backend state.
package viewstate

import "github.com/myrjola/runcoach/internal/coach"

type View string

const (
	Login              View = "login"
	ProfileForm        View = "profile-form"
	VerificationWait   View = "verification-pending"
	VerificationResult View = "verification-result"
	VerificationError  View = "verification-error"
	MacroplanWait      View = "macroplan-pending"
	MacroplanError     View = "macroplan-error"
	WeeklyPlanWait     View = "weekly-plan-pending"
	WeeklyPlanError    View = "weekly-plan-error"
	Calendar           View = "calendar"
	WeeklyPlan         View = "weekly-plan"
	TrainingPlan       View = "training-plan"
)

// IsPending reports whether v waits on a backend job.
func (v View) IsPending() bool {
	return v == VerificationWait || v == MacroplanWait || v == WeeklyPlanWait
}

// IsError reports whether v is a terminal error page.
func (v View) IsError() bool {
	return v == VerificationError || v == MacroplanError || v == WeeklyPlanError
}

// IsPlan reports whether v is one of the plan sub-views.
func (v View) IsPlan() bool {
	return v == Calendar || v == WeeklyPlan || v == TrainingPlan
}

// SubView is the plan page the runner selected.
type SubView string

const (
	SubViewCalendar SubView = "calendar"
	SubViewWeek     SubView = "week"
	SubViewOverview SubView = "overview"
	defaultSubView          = SubViewCalendar
)

// Local is the client-side state that is not reported by the backend.
type Local struct {
	Editing bool
	SubView SubView
}

type rule struct {
	name  string
	when  func(s *coach.UserState, l Local) bool
	route func(l Local) View
}

func to(v View) func(Local) View { return func(Local) View { return v } }

func planView(l Local) View {
	switch l.SubView {
	case SubViewWeek:
		return WeeklyPlan
	case SubViewOverview:
		return TrainingPlan
	case SubViewCalendar:
		return Calendar
	default:
		return Calendar
	}
}

// rules are evaluated top to bottom and the first match wins.
//
//nolint:gochecknoglobals // immutable routing table.
var rules = []rule{
	{"signed out", func(s *coach.UserState, _ Local) bool { return s == nil }, to(Login)},
	{"editing", func(_ *coach.UserState, l Local) bool { return l.Editing }, to(ProfileForm)},
	{"no profile", func(s *coach.UserState, _ Local) bool { return !s.HasProfile }, to(ProfileForm)},
	{"verifying", func(s *coach.UserState, _ Local) bool {
		return s.VerificationStatus == coach.StatusPending
	}, to(VerificationWait)},
	{"verification failed", func(s *coach.UserState, _ Local) bool {
		return s.VerificationStatus == coach.StatusError
	}, to(VerificationError)},
	{"verification needs decision", func(s *coach.UserState, _ Local) bool {
		return s.VerificationStatus == coach.StatusCompleted &&
			s.VerificationResult.NeedsDecision() &&
			s.MacroplanStatus == coach.StatusNone
	}, to(VerificationResult)},
	{"planning", func(s *coach.UserState, _ Local) bool {
		return s.MacroplanStatus == coach.StatusPending
	}, to(MacroplanWait)},
	{"planning failed", func(s *coach.UserState, _ Local) bool {
		return s.MacroplanStatus == coach.StatusError
	}, to(MacroplanError)},
	{"scheduling", func(s *coach.UserState, _ Local) bool {
		return s.MacroplanStatus == coach.StatusCompleted && s.WeeklyPlanStatus == coach.StatusPending
	}, to(WeeklyPlanWait)},
	{"scheduling failed", func(s *coach.UserState, _ Local) bool {
		return s.MacroplanStatus == coach.StatusCompleted && s.WeeklyPlanStatus == coach.StatusError
	}, to(WeeklyPlanError)},
	{"plan ready", func(s *coach.UserState, _ Local) bool {
		return s.WeeklyPlanStatus == coach.StatusCompleted && s.HasSchedules()
	}, planView},
	{"schedule not generated", func(s *coach.UserState, _ Local) bool {
		return s.MacroplanStatus == coach.StatusCompleted
	}, to(WeeklyPlanWait)},
	// Verification finished but generation has not been reported yet.
	{"awaiting generation", func(_ *coach.UserState, _ Local) bool { return true }, to(MacroplanWait)},
}

// Route returns the view for state and local. A nil state means the runner is signed out.
func Route(state *coach.UserState, local Local) View {
	v, _ := Explain(state, local)
	return v
}

// Explain is Route that also names the matching rule.
func Explain(state *coach.UserState, local Local) (View, string) {
	for _, r := range rules {
		if r.when(state, local) {
			return r.route(local), r.name
		}
	}
	return Login, ""
}

// ParseSubView maps the stored selection to a SubView, defaulting to the calendar.
func ParseSubView(s string) SubView {
	switch v := SubView(s); v {
	case SubViewCalendar, SubViewWeek, SubViewOverview:
		return v
	default:
		return defaultSubView
	}
}

// Pending reports whether state still has a backend job in flight and should be polled.
func Pending(state *coach.UserState) bool {
	return state.Pending()
}
