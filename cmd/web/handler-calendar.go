package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/runcoach/internal/calendar"
	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/contexthelpers"
	"github.com/myrjola/runcoach/internal/plandate"
	"github.com/myrjola/runcoach/internal/sessionlog"
	"github.com/myrjola/runcoach/internal/viewstate"
	"golang.org/x/sync/errgroup"
)

// requirePlan loads the state for a plan page and remembers the page as the selected sub-view. Runners without a
// generated plan are sent home, which routes them to wherever onboarding stands.
func (app *application) requirePlan(
	w http.ResponseWriter,
	r *http.Request,
	sub viewstate.SubView,
) (*coach.UserState, bool) {
	ctx := r.Context()
	app.sessionManager.Put(ctx, sessionKeySubView, string(sub))
	view, state, err := app.resolveView(r)
	if err != nil {
		app.backendError(w, r, err)
		return nil, false
	}
	if !view.IsPlan() {
		redirect(w, r, "/")
		return nil, false
	}
	return state, true
}

// planStart is the Monday of plan week 1. Before the backend reports it the first training date stands in.
func (app *application) planStart(state *coach.UserState) time.Time {
	if start, err := plandate.Parse(state.PlanStartDate); err == nil {
		return start
	}
	if state.Profile != nil {
		if start, err := plandate.Parse(state.Profile.FirstTrainingDate); err == nil {
			return start
		}
	}
	return plandate.MondayOf(app.today())
}

// sessionLogOf fetches the runner's feedback and unplanned sessions concurrently.
func (app *application) sessionLogOf(ctx context.Context) (
	map[string]coach.SessionFeedback,
	map[string][]coach.UnplannedSession,
	error,
) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	var (
		feedback  map[string]coach.SessionFeedback
		unplanned map[string][]coach.UnplannedSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feedback, err = app.sessionLog.Feedback(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		unplanned, err = app.sessionLog.Unplanned(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("load session log: %w", err)
	}
	return feedback, unplanned, nil
}

// calendarSession is a session as a calendar cell shows it.
type calendarSession struct {
	Class       string
	Label       string
	Detail      string
	Href        string
	HasFeedback bool
}

func toCalendarSession(s calendar.Session) calendarSession {
	return calendar.MatchSession(s,
		func(p calendar.Planned) calendarSession {
			cs := calendarSession{
				Class:       "session-strength",
				Label:       "Strength",
				Detail:      "",
				Href:        "/calendar/" + p.DateKey + "/feedback",
				HasFeedback: p.Feedback != nil,
			}
			if p.Running != nil {
				cs.Class = calendar.RunClass(p.Running.RunType)
				cs.Label = p.Running.RunType.Label()
				cs.Detail = formatDistance(p.Running.DistanceKm) + " km"
				if p.Strength != nil {
					cs.Detail += " + strength"
				}
			} else if p.Strength != nil {
				cs.Detail = strconv.Itoa(p.Strength.DurationMinutes) + " min"
			}
			return cs
		},
		func(u calendar.Unplanned) calendarSession {
			label := "Unplanned"
			if u.Session.RunType != "" {
				label = u.Session.RunType.Label()
			}
			return calendarSession{
				Class:       "session-unplanned",
				Label:       label,
				Detail:      formatDistance(u.Session.DistanceKm) + " km",
				Href:        "",
				HasFeedback: false,
			}
		})
}

type calendarDay struct {
	calendar.Day
	Cells []calendarSession
}

type calendarTemplateData struct {
	BaseTemplateData
	Title    string
	Weeks    [][]calendarDay
	PrevKey  string
	NextKey  string
	Legend   []calendar.LegendEntry
	Weekdays []string
}

func (app *application) calendarGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, ok := app.requirePlan(w, r, viewstate.SubViewCalendar)
	if !ok {
		return
	}
	today := app.today()
	year, month := today.Year(), today.Month()
	if key := r.URL.Query().Get("month"); key != "" {
		var err error
		if year, month, err = calendar.ParseMonth(key); err != nil {
			app.notFound(w, r)
			return
		}
	}
	feedback, unplanned, err := app.sessionLogOf(ctx)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	m := calendar.BuildMonth(calendar.Input{
		Schedules: state.WeeklySchedules,
		PlanStart: app.planStart(state),
		Year:      year,
		Month:     month,
		Today:     today,
		Feedback:  feedback,
		Unplanned: unplanned,
	})
	weeks := make([][]calendarDay, 0, len(m.Days)/len(coach.Week))
	for _, week := range m.Weeks() {
		row := make([]calendarDay, 0, len(week))
		for _, day := range week {
			cells := make([]calendarSession, 0, len(day.Visible()))
			for _, s := range day.Visible() {
				cells = append(cells, toCalendarSession(s))
			}
			row = append(row, calendarDay{Day: day, Cells: cells})
		}
		weeks = append(weeks, row)
	}
	py, pm := calendar.PrevMonth(m.Year, m.Month)
	ny, nm := calendar.NextMonth(m.Year, m.Month)
	weekdays := make([]string, 0, len(coach.Week))
	for _, d := range coach.Week {
		weekdays = append(weekdays, d.Short())
	}

	app.render(w, r, http.StatusOK, "calendar", calendarTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Title:            m.Title(),
		Weeks:            weeks,
		PrevKey:          calendar.Month{Year: py, Month: pm, Days: nil}.Key(),
		NextKey:          calendar.Month{Year: ny, Month: nm, Days: nil}.Key(),
		Legend:           calendar.Legend(),
		Weekdays:         weekdays,
	})
}

// plannedOn finds the planned session of date among the weeks that have started.
func (app *application) plannedOn(
	state *coach.UserState,
	date time.Time,
	feedback map[string]coach.SessionFeedback,
) (calendar.Planned, bool) {
	m := calendar.BuildMonth(calendar.Input{
		Schedules: state.WeeklySchedules,
		PlanStart: app.planStart(state),
		Year:      date.Year(),
		Month:     date.Month(),
		Today:     app.today(),
		Feedback:  feedback,
		Unplanned: nil,
	})
	key := plandate.Format(date)
	for _, day := range m.Days {
		if day.DateKey != key {
			continue
		}
		for _, s := range day.Sessions {
			if p, ok := s.(calendar.Planned); ok {
				return p, true
			}
		}
	}
	return calendar.Planned{}, false
}

func monthHref(date time.Time) string {
	return "/calendar?month=" + calendar.Month{Year: date.Year(), Month: date.Month(), Days: nil}.Key()
}

type feedbackTemplateData struct {
	BaseTemplateData
	Date      time.Time
	Session   calendar.Planned
	Form      sessionlog.FeedbackForm
	Exertion  []int
	ReturnURL string
}

// sessionFeedback loads what the feedback page needs for the date in the path.
func (app *application) sessionFeedback(w http.ResponseWriter, r *http.Request) (feedbackTemplateData, bool) {
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return feedbackTemplateData{}, false
	}
	state, ok := app.requirePlan(w, r, viewstate.SubViewCalendar)
	if !ok {
		return feedbackTemplateData{}, false
	}
	feedback, err := app.sessionLog.Feedback(r.Context(), contexthelpers.AuthenticatedUserID(r.Context()))
	if err != nil {
		app.serverError(w, r, err)
		return feedbackTemplateData{}, false
	}
	planned, ok := app.plannedOn(state, date, feedback)
	if !ok {
		app.notFound(w, r)
		return feedbackTemplateData{}, false
	}
	return feedbackTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Date:             date,
		Session:          planned,
		Form:             sessionlog.NewFeedbackForm(planned.DateKey, planned.Feedback),
		Exertion:         sessionlog.ExertionScale(),
		ReturnURL:        monthHref(date),
	}, true
}

func (app *application) feedbackGET(w http.ResponseWriter, r *http.Request) {
	data, ok := app.sessionFeedback(w, r)
	if !ok {
		return
	}
	app.render(w, r, http.StatusOK, "feedback", data)
}

func (app *application) feedbackPOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	data, ok := app.sessionFeedback(w, r)
	if !ok {
		return
	}
	data.Form.Decode(r.PostForm)
	saved, err := app.sessionLog.SaveFeedback(ctx, contexthelpers.AuthenticatedUserID(ctx), data.Form.Feedback())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "saved session feedback",
		slog.String("date", saved.SessionDate), slog.String("feedback_id", saved.ID))
	redirect(w, r, data.ReturnURL)
}

type unplannedTemplateData struct {
	BaseTemplateData
	Date      time.Time
	Form      sessionlog.UnplannedForm
	RunTypes  []coach.RunType
	ReturnURL string
}

func (app *application) newUnplannedTemplateData(
	r *http.Request,
	date time.Time,
	form sessionlog.UnplannedForm,
) unplannedTemplateData {
	return unplannedTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Date:             date,
		Form:             form,
		RunTypes:         sessionlog.UnplannedRunTypes(),
		ReturnURL:        monthHref(date),
	}
}

func (app *application) unplannedGET(w http.ResponseWriter, r *http.Request) {
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return
	}
	if _, ok = app.requirePlan(w, r, viewstate.SubViewCalendar); !ok {
		return
	}
	form := sessionlog.NewUnplannedForm(plandate.Format(date))
	app.render(w, r, http.StatusOK, "unplanned", app.newUnplannedTemplateData(r, date, form))
}

// unplannedPOST edits the interval list of the form or saves the run. The form lives only in the page, so every
// action re-posts all fields.
func (app *application) unplannedPOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return
	}
	if _, ok = app.requirePlan(w, r, viewstate.SubViewCalendar); !ok {
		return
	}
	form := sessionlog.NewUnplannedForm(plandate.Format(date))
	form.Decode(r.PostForm)

	action := r.PostForm.Get("action")
	switch {
	case action == "add-interval":
		form.AddInterval()
	case strings.HasPrefix(action, "remove-interval-"):
		if i, err := strconv.Atoi(strings.TrimPrefix(action, "remove-interval-")); err == nil {
			form.RemoveInterval(i)
		}
	case action == "save":
		session, valid := form.Session()
		if !valid {
			app.render(w, r, http.StatusUnprocessableEntity, "unplanned", app.newUnplannedTemplateData(r, date, form))
			return
		}
		saved, err := app.sessionLog.AddUnplanned(ctx, contexthelpers.AuthenticatedUserID(ctx), session)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		app.logger.LogAttrs(ctx, slog.LevelInfo, "logged unplanned session",
			slog.String("date", saved.Date), slog.String("session_id", saved.ID))
		redirect(w, r, monthHref(date))
		return
	}
	app.render(w, r, http.StatusOK, "unplanned", app.newUnplannedTemplateData(r, date, form))
}
