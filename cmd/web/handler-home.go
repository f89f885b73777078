package main

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/contexthelpers"
	"github.com/myrjola/runcoach/internal/viewstate"
)

// resolveView fetches the backend state of the session and routes it. Pending views make sure a poll loop follows
// the running job.
func (app *application) resolveView(r *http.Request) (viewstate.View, *coach.UserState, error) {
	ctx := r.Context()
	p := app.provider(r)
	state, err := p.State(ctx)
	if err != nil {
		return "", nil, err
	}
	local := app.localState(ctx)
	view, rule := viewstate.Explain(state, local)
	if view.IsPending() && !p.Watching() && !p.Verifying() {
		// Nothing follows the job, so the cached state may be stale.
		if state, err = p.Refresh(ctx); err != nil {
			return "", nil, err
		}
		view, rule = viewstate.Explain(state, local)
	}
	switch view { //nolint:exhaustive // only the pending views start polling.
	case viewstate.VerificationWait:
		p.WatchVerification()
	case viewstate.MacroplanWait, viewstate.WeeklyPlanWait:
		p.Watch()
	}
	app.logger.LogAttrs(ctx, slog.LevelDebug, "routed view", slog.String("view", string(view)),
		slog.String("rule", rule))
	return view, state, nil
}

// planPath is the page of a plan sub-view.
func planPath(view viewstate.View) string {
	switch view { //nolint:exhaustive // only plan views have pages.
	case viewstate.WeeklyPlan:
		return "/plan/week"
	case viewstate.TrainingPlan:
		return "/plan/overview"
	default:
		return "/calendar"
	}
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	if !contexthelpers.IsAuthenticated(r.Context()) {
		redirect(w, r, "/login")
		return
	}
	view, state, err := app.resolveView(r)
	if err != nil {
		app.backendError(w, r, err)
		return
	}
	switch {
	case view == viewstate.ProfileForm:
		redirect(w, r, "/profile")
	case view.IsPlan():
		redirect(w, r, planPath(view))
	case view.IsPending():
		app.renderPending(w, r, view)
	case view.IsError():
		app.renderJobError(w, r, view, state)
	case view == viewstate.VerificationResult:
		app.renderVerification(w, r, state)
	default:
		redirect(w, r, "/login")
	}
}

type pendingTemplateData struct {
	BaseTemplateData
	Title   string
	Message string
}

func (app *application) renderPending(w http.ResponseWriter, r *http.Request, view viewstate.View) {
	data := pendingTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Title:            "",
		Message:          "",
	}
	data.RefreshSeconds = max(1, int(math.Ceil(app.pollInterval.Seconds())))
	switch view { //nolint:exhaustive // pending views only.
	case viewstate.VerificationWait:
		data.Title = "Reviewing your profile"
		data.Message = "Your coach is checking that your goal suits your current fitness."
	case viewstate.MacroplanWait:
		data.Title = "Building your training plan"
		data.Message = "Your coach is outlining the phases that lead to your goal."
	default:
		data.Title = "Scheduling your weeks"
		data.Message = "Your coach is laying out the sessions of each week."
	}
	app.render(w, r, http.StatusOK, "pending", data)
}

type jobErrorTemplateData struct {
	BaseTemplateData
	Title   string
	Message string
}

func (app *application) renderJobError(w http.ResponseWriter, r *http.Request, view viewstate.View,
	state *coach.UserState) {
	data := jobErrorTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Title:            "Plan generation failed",
		Message:          "Your coach could not generate the plan. Try again or adjust your profile.",
	}
	if view == viewstate.VerificationError {
		data.Title = "Verification failed"
		data.Message = "Your coach could not review the profile. Try again or adjust your profile."
		if state.VerificationResult != nil && state.VerificationResult.Error != "" {
			data.Message = state.VerificationResult.Error
		}
	}
	app.render(w, r, http.StatusOK, "job-error", data)
}

type verificationTemplateData struct {
	BaseTemplateData
	Result *coach.VerificationResult
}

// OutcomeLabel names the verifier's verdict.
func (d verificationTemplateData) OutcomeLabel() string {
	switch d.Result.Outcome {
	case coach.OutcomeOK:
		return "Approved"
	case coach.OutcomeWarning:
		return "Warning"
	case coach.OutcomeRejected:
		return "Not Recommended"
	default:
		return string(d.Result.Outcome)
	}
}

// CanContinue reports whether the runner may start the plan despite the verdict.
func (d verificationTemplateData) CanContinue() bool {
	return d.Result.Outcome == coach.OutcomeWarning
}

func (app *application) renderVerification(w http.ResponseWriter, r *http.Request, state *coach.UserState) {
	app.render(w, r, http.StatusOK, "verification", verificationTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Result:           state.VerificationResult,
	})
}

// refreshPOST discards a terminal polling failure by fetching the state again.
func (app *application) refreshPOST(w http.ResponseWriter, r *http.Request) {
	if _, err := app.provider(r).Refresh(r.Context()); err != nil {
		app.backendError(w, r, err)
		return
	}
	redirect(w, r, "/")
}
