package main

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/coachapi"
	"github.com/myrjola/runcoach/internal/errors"
	"github.com/myrjola/runcoach/internal/profileform"
)

type profileTemplateData struct {
	BaseTemplateData
	Form    profileform.Form
	Editing bool

	Week                   []coach.DayOfWeek
	BiologicalSexOptions   []profileform.Option
	UnitOptions            []profileform.Option
	LevelOptions           []profileform.Option
	ActivityLevelOptions   []profileform.Option
	ConfirmationOptions    []profileform.Option
	RaceDistanceOptions    []profileform.Option
	EquipmentOptions       []profileform.Option
	SessionsPerWeekOptions []profileform.Option
	GoalKindOptions        []profileform.Option
	GoalTypeOptions        []profileform.Option
}

// DaySelected reports whether the runner marked day as available.
func (d profileTemplateData) DaySelected(day coach.DayOfWeek) bool {
	return slices.Contains(d.Form.DaysAvailable, day)
}

// StepNumber is the one-based position of the current wizard page.
func (d profileTemplateData) StepNumber() int {
	return d.Form.Page.Index() + 1
}

// StepCount is the number of wizard pages.
func (d profileTemplateData) StepCount() int {
	return len(profileform.Pages)
}

// IsFirstPage reports whether the wizard shows its first page.
func (d profileTemplateData) IsFirstPage() bool {
	return d.Form.IsFirst()
}

// IsLastPage reports whether the wizard shows its last page.
func (d profileTemplateData) IsLastPage() bool {
	return d.Form.IsLast()
}

// IsExperienced reports whether the fitness page asks for running history.
func (d profileTemplateData) IsExperienced() bool {
	return d.Form.Level != "" && d.Form.Level != coach.Beginner
}

func (app *application) newProfileTemplateData(r *http.Request, form profileform.Form) profileTemplateData {
	return profileTemplateData{
		BaseTemplateData:       app.newBaseTemplateData(r),
		Form:                   form,
		Editing:                app.sessionManager.GetBool(r.Context(), sessionKeyEditing),
		Week:                   coach.Week,
		BiologicalSexOptions:   profileform.BiologicalSexOptions,
		UnitOptions:            profileform.UnitOptions,
		LevelOptions:           profileform.LevelOptions,
		ActivityLevelOptions:   profileform.ActivityLevelOptions,
		ConfirmationOptions:    profileform.ConfirmationOptions,
		RaceDistanceOptions:    profileform.RaceDistanceOptions,
		EquipmentOptions:       profileform.EquipmentOptions,
		SessionsPerWeekOptions: profileform.SessionsPerWeekOptions,
		GoalKindOptions:        profileform.GoalKindOptions,
		GoalTypeOptions:        profileform.GoalTypeOptions,
	}
}

// initialForm starts the wizard empty or pre-filled with the stored profile.
func (app *application) initialForm(state *coach.UserState) profileform.Form {
	if state != nil && state.Profile != nil {
		return profileform.FromProfile(*state.Profile, app.today())
	}
	return profileform.New(app.today())
}

func (app *application) profileGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := app.provider(r).State(ctx)
	if err != nil {
		app.backendError(w, r, err)
		return
	}

	if r.URL.Query().Get("edit") == "1" {
		app.sessionManager.Put(ctx, sessionKeyEditing, true)
		form := app.initialForm(state)
		if err = app.saveProfileForm(ctx, form); err != nil {
			app.serverError(w, r, err)
			return
		}
		redirect(w, r, "/profile")
		return
	}

	if state.HasProfile && !app.sessionManager.GetBool(ctx, sessionKeyEditing) {
		redirect(w, r, "/")
		return
	}

	form, ok := app.loadProfileForm(ctx)
	if !ok {
		form = app.initialForm(state)
		if err = app.saveProfileForm(ctx, form); err != nil {
			app.serverError(w, r, err)
			return
		}
	}
	app.render(w, r, http.StatusOK, "profile", app.newProfileTemplateData(r, form))
}

// profilePOST advances the wizard. The action button decides whether the page is validated, left or submitted;
// the fields of the current page are kept in every case.
func (app *application) profilePOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	action := r.PostForm.Get("action")
	if action == "cancel" {
		app.finishEditing(ctx)
		redirect(w, r, "/")
		return
	}

	form, ok := app.loadProfileForm(ctx)
	if !ok {
		state, err := app.provider(r).State(ctx)
		if err != nil {
			app.backendError(w, r, err)
			return
		}
		form = app.initialForm(state)
	}
	// A stale tab may post a page the wizard already left.
	if page := profileform.Page(r.PostForm.Get("page")); page.Index() >= 0 && page != form.Page {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "ignoring stale wizard page",
			slog.String("posted", string(page)), slog.String("current", string(form.Page)))
		if err := app.saveProfileForm(ctx, form); err != nil {
			app.serverError(w, r, err)
			return
		}
		redirect(w, r, "/profile")
		return
	}
	form.Decode(r.PostForm)
	form.Errors = nil

	switch {
	case action == "next":
		form.Next(app.today())
	case action == "back":
		form.Back()
	case strings.HasPrefix(action, "toggle:"):
		form.ToggleDay(coach.DayOfWeek(strings.TrimPrefix(action, "toggle:")))
	case action == "submit":
		input, valid := form.Submit(app.today())
		if valid {
			if submitted := app.submitProfile(w, r, &form, input); submitted {
				return
			}
		}
	default:
		// "update" re-renders conditional fields after a selection changed.
	}

	if err := app.saveProfileForm(ctx, form); err != nil {
		app.serverError(w, r, err)
		return
	}
	status := http.StatusOK
	if len(form.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	app.render(w, r, status, "profile", app.newProfileTemplateData(r, form))
}

// submitProfile sends the profile to the backend, which starts the verification. It reports whether the response
// has been written; a refused profile is reported on the form instead.
func (app *application) submitProfile(
	w http.ResponseWriter,
	r *http.Request,
	form *profileform.Form,
	input coach.UserProfileInput,
) bool {
	ctx := r.Context()
	err := app.coach.CreateProfile(ctx, app.sessionManager.GetString(ctx, sessionKeyToken), input)
	if err != nil {
		var apiErr *coachapi.Error
		if errors.Is(err, coachapi.ErrUnauthorized) || !errors.As(err, &apiErr) {
			app.backendError(w, r, err)
			return true
		}
		app.logger.LogAttrs(ctx, slog.LevelInfo, "profile refused", errors.SlogError(err))
		form.Errors = map[string]string{"form": problemMessage(err)}
		return false
	}

	app.finishEditing(ctx)
	p := app.provider(r)
	if _, err = p.Refresh(ctx); err != nil {
		app.backendError(w, r, err)
		return true
	}
	p.WatchVerification()
	app.logger.LogAttrs(ctx, slog.LevelInfo, "profile submitted")
	redirect(w, r, "/")
	return true
}

// proposalAcceptPOST folds a verifier proposal into the wizard and opens it for review.
func (app *application) proposalAcceptPOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		app.notFound(w, r)
		return
	}
	state, err := app.provider(r).State(ctx)
	if err != nil {
		app.backendError(w, r, err)
		return
	}
	if state.VerificationResult == nil || index < 0 || index >= len(state.VerificationResult.Proposals) {
		app.notFound(w, r)
		return
	}

	form := app.initialForm(state)
	form.ApplyProposal(state.VerificationResult.Proposals[index])
	if err = app.saveProfileForm(ctx, form); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.sessionManager.Put(ctx, sessionKeyEditing, true)
	redirect(w, r, "/profile")
}

// proceedPOST starts the plan generation despite the verifier's concerns.
func (app *application) proceedPOST(w http.ResponseWriter, r *http.Request) {
	if err := app.provider(r).Proceed(r.Context()); err != nil {
		app.backendError(w, r, err)
		return
	}
	redirect(w, r, "/")
}
