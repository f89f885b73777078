package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/myrjola/runcoach/internal/coachapi"
	"github.com/myrjola/runcoach/internal/contexthelpers"
	"github.com/myrjola/runcoach/internal/errors"
	"github.com/myrjola/runcoach/internal/plandate"
	"github.com/myrjola/runcoach/internal/planstate"
	"github.com/myrjola/runcoach/internal/poll"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.render(w, r, http.StatusInternalServerError, "error", app.newBaseTemplateData(r))
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusNotFound, "not-found", app.newBaseTemplateData(r))
}

type unavailableTemplateData struct {
	BaseTemplateData
	Message string
}

// backendError handles a failed backend interaction. A rejected token ends the session and sends the runner to the
// login page; anything else renders a message with a retry path.
func (app *application) backendError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, coachapi.ErrUnauthorized) {
		app.logger.LogAttrs(ctx, slog.LevelInfo, "backend rejected session", errors.SlogError(err))
		if signOutErr := app.signOut(r); signOutErr != nil {
			app.serverError(w, r, signOutErr)
			return
		}
		redirect(w, r, "/login")
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelWarn, "backend failure", errors.SlogError(err))
	app.render(w, r, http.StatusBadGateway, "unavailable", unavailableTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Message:          problemMessage(err),
	})
}

// problemMessage phrases err for the runner.
func problemMessage(err error) string {
	switch {
	case errors.Is(err, poll.ErrTimeout):
		return "Your coach is taking longer than expected. Try again in a moment."
	case coachapi.Detail(err) != "":
		return coachapi.Detail(err)
	default:
		return "The coach service is unavailable. Try again in a moment."
	}
}

// redirect detects if the request is originating from a fetch API call or a top-level navigation and points the user
// to the correct URL.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("Sec-Fetch-Dest") == "empty" {
		w.Header().Set("Content-Location", path)
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, path, http.StatusSeeOther)
}

// parseDateParam parses the "date" path parameter from the request URL.
// Returns the parsed date and true if successful, or zero time and false if parsing fails.
// On failure, renders the not found page.
func (app *application) parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := plandate.Parse(r.PathValue("date"))
	if err != nil {
		app.notFound(w, r)
		return time.Time{}, false
	}
	return date, true
}

// today is the current civil date.
func (app *application) today() time.Time {
	return plandate.Day(app.now())
}

// provider returns the backend state holder of the signed-in session.
func (app *application) provider(r *http.Request) *planstate.Provider {
	ctx := r.Context()
	return app.providers.Provider(contexthelpers.SessionID(ctx), contexthelpers.AccessToken(ctx))
}
