package main

import (
	"net/http"
	"strconv"

	"github.com/myrjola/runcoach/internal/calendar"
	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/viewstate"
)

type weekTemplateData struct {
	BaseTemplateData
	Schedule coach.WeeklySchedule
	Days     []calendar.WeekDay
	// Phase is nil when the macroplan does not cover the week.
	Phase    *coach.PhaseSpan
	PrevWeek int
	NextWeek int
}

func (app *application) weekGET(w http.ResponseWriter, r *http.Request) {
	state, ok := app.requirePlan(w, r, viewstate.SubViewWeek)
	if !ok {
		return
	}
	planStart := app.planStart(state)

	schedule, found := calendar.CurrentWeek(state.WeeklySchedules, planStart, app.today())
	if param := r.URL.Query().Get("week"); param != "" {
		n, err := strconv.Atoi(param)
		if err != nil {
			app.notFound(w, r)
			return
		}
		found = false
		for _, s := range state.WeeklySchedules {
			if s.WeekNumber == n {
				schedule, found = s, true
				break
			}
		}
	}
	if !found {
		app.notFound(w, r)
		return
	}

	data := weekTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Schedule:         schedule,
		Days:             calendar.WeekDays(schedule, planStart),
		Phase:            nil,
		PrevWeek:         0,
		NextWeek:         0,
	}
	if state.TrainingOverview != nil {
		if span, inPlan := state.TrainingOverview.PhaseOf(schedule.WeekNumber); inPlan {
			data.Phase = &span
		}
	}
	for _, s := range state.WeeklySchedules {
		switch s.WeekNumber {
		case schedule.WeekNumber - 1:
			data.PrevWeek = s.WeekNumber
		case schedule.WeekNumber + 1:
			data.NextWeek = s.WeekNumber
		}
	}
	app.render(w, r, http.StatusOK, "week", data)
}

type overviewTemplateData struct {
	BaseTemplateData
	Strategy   coach.TrainingStrategy
	Phases     []coach.PhaseSpan
	TotalWeeks int
}

func (app *application) overviewGET(w http.ResponseWriter, r *http.Request) {
	state, ok := app.requirePlan(w, r, viewstate.SubViewOverview)
	if !ok {
		return
	}
	var strategy coach.TrainingStrategy
	if state.TrainingOverview != nil {
		strategy = *state.TrainingOverview
	}
	app.render(w, r, http.StatusOK, "overview", overviewTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Strategy:         strategy,
		Phases:           strategy.PhaseSpans(),
		TotalWeeks:       strategy.TotalWeeks(),
	})
}
