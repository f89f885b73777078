package viewstate_test

import (
	"testing"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/viewstate"
)

func TestRoute(t *testing.T) {
	warning := &coach.VerificationResult{Outcome: coach.OutcomeWarning, Message: "Ambitious."}
	ok := &coach.VerificationResult{Outcome: coach.OutcomeOK}
	schedules := []coach.WeeklySchedule{{WeekNumber: 1}}

	tests := []struct {
		name  string
		state *coach.UserState
		local viewstate.Local
		want  viewstate.View
	}{
		{
			name:  "signed out",
			state: nil,
			want:  viewstate.Login,
		},
		{
			name:  "no profile",
			state: &coach.UserState{HasProfile: false},
			want:  viewstate.ProfileForm,
		},
		{
			name:  "verification pending",
			state: &coach.UserState{HasProfile: true, VerificationStatus: coach.StatusPending},
			want:  viewstate.VerificationWait,
		},
		{
			name:  "verification error",
			state: &coach.UserState{HasProfile: true, VerificationStatus: coach.StatusError},
			want:  viewstate.VerificationError,
		},
		{
			name: "warning awaits decision",
			state: &coach.UserState{
				HasProfile:         true,
				VerificationStatus: coach.StatusCompleted,
				VerificationResult: warning,
			},
			want: viewstate.VerificationResult,
		},
		{
			name: "warning overridden by proceed",
			state: &coach.UserState{
				HasProfile:         true,
				VerificationStatus: coach.StatusCompleted,
				VerificationResult: warning,
				MacroplanStatus:    coach.StatusPending,
			},
			want: viewstate.MacroplanWait,
		},
		{
			name: "ok verification before generation is reported",
			state: &coach.UserState{
				HasProfile:         true,
				VerificationStatus: coach.StatusCompleted,
				VerificationResult: ok,
			},
			want: viewstate.MacroplanWait,
		},
		{
			name: "macroplan error",
			state: &coach.UserState{
				HasProfile:         true,
				VerificationStatus: coach.StatusCompleted,
				VerificationResult: ok,
				MacroplanStatus:    coach.StatusError,
			},
			want: viewstate.MacroplanError,
		},
		{
			name: "weekly plan pending",
			state: &coach.UserState{
				HasProfile:         true,
				VerificationStatus: coach.StatusCompleted,
				MacroplanStatus:    coach.StatusCompleted,
				WeeklyPlanStatus:   coach.StatusPending,
			},
			want: viewstate.WeeklyPlanWait,
		},
		{
			name: "weekly plan error",
			state: &coach.UserState{
				HasProfile:         true,
				VerificationStatus: coach.StatusCompleted,
				MacroplanStatus:    coach.StatusCompleted,
				WeeklyPlanStatus:   coach.StatusError,
			},
			want: viewstate.WeeklyPlanError,
		},
		{
			name: "weekly plan completed without schedules",
			state: &coach.UserState{
				HasProfile:         true,
				VerificationStatus: coach.StatusCompleted,
				MacroplanStatus:    coach.StatusCompleted,
				WeeklyPlanStatus:   coach.StatusCompleted,
			},
			want: viewstate.WeeklyPlanWait,
		},
		{
			name:  "plan ready defaults to calendar",
			state: readyState(schedules),
			want:  viewstate.Calendar,
		},
		{
			name:  "plan ready week sub-view",
			state: readyState(schedules),
			local: viewstate.Local{SubView: viewstate.SubViewWeek},
			want:  viewstate.WeeklyPlan,
		},
		{
			name:  "plan ready overview sub-view",
			state: readyState(schedules),
			local: viewstate.Local{SubView: viewstate.SubViewOverview},
			want:  viewstate.TrainingPlan,
		},
		{
			name:  "editing overrides everything",
			state: readyState(schedules),
			local: viewstate.Local{Editing: true, SubView: viewstate.SubViewWeek},
			want:  viewstate.ProfileForm,
		},
		{
			name:  "editing while verifying",
			state: &coach.UserState{HasProfile: true, VerificationStatus: coach.StatusPending},
			local: viewstate.Local{Editing: true},
			want:  viewstate.ProfileForm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := viewstate.Explain(tt.state, tt.local)
			if got != tt.want {
				t.Errorf("Route() = %s (rule %q), want %s", got, rule, tt.want)
			}
		})
	}
}

func readyState(schedules []coach.WeeklySchedule) *coach.UserState {
	return &coach.UserState{
		HasProfile:         true,
		VerificationStatus: coach.StatusCompleted,
		VerificationResult: &coach.VerificationResult{Outcome: coach.OutcomeOK},
		MacroplanStatus:    coach.StatusCompleted,
		WeeklyPlanStatus:   coach.StatusCompleted,
		WeeklySchedules:    schedules,
	}
}

func TestParseSubView(t *testing.T) {
	for in, want := range map[string]viewstate.SubView{
		"":         viewstate.SubViewCalendar,
		"week":     viewstate.SubViewWeek,
		"overview": viewstate.SubViewOverview,
		"bogus":    viewstate.SubViewCalendar,
	} {
		if got := viewstate.ParseSubView(in); got != want {
			t.Errorf("ParseSubView(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPending(t *testing.T) {
	if viewstate.Pending(nil) {
		t.Error("Pending(nil) = true")
	}
	if !viewstate.Pending(&coach.UserState{WeeklyPlanStatus: coach.StatusPending}) {
		t.Error("Pending() = false for pending weekly plan")
	}
	if viewstate.Pending(readyState(nil)) {
		t.Error("Pending() = true for completed state")
	}
}
