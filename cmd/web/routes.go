package main

import (
	"fmt"
	"net/http"
)

func (app *application) routes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(secureHeaders(app.crossOriginProtection(
				commonContext(app.timeout(next)))))
		}
		noAuth = func(next http.Handler) http.Handler {
			return app.recoverPanic(shared(next))
		}
		session = func(next http.Handler) http.Handler {
			return app.recoverPanic(noCache(app.sessionManager.LoadAndSave(
				app.authenticate(shared(next)))))
		}
		anonymous = func(next http.Handler) http.Handler {
			return session(app.mustBeAnonymous(next))
		}
		mustSession = func(next http.Handler) http.Handler {
			return session(app.mustAuthenticate(next))
		}
	)

	mux.Handle("GET /login", anonymous(http.HandlerFunc(app.loginGET)))
	mux.Handle("POST /login", anonymous(http.HandlerFunc(app.loginPOST)))
	mux.Handle("GET /register", anonymous(http.HandlerFunc(app.registerGET)))
	mux.Handle("POST /register", anonymous(http.HandlerFunc(app.registerPOST)))
	mux.Handle("POST /logout", session(http.HandlerFunc(app.logoutPOST)))

	mux.Handle("POST /refresh", mustSession(http.HandlerFunc(app.refreshPOST)))

	mux.Handle("GET /profile", mustSession(http.HandlerFunc(app.profileGET)))
	mux.Handle("POST /profile", mustSession(http.HandlerFunc(app.profilePOST)))
	mux.Handle("POST /profile/proposals/{index}", mustSession(http.HandlerFunc(app.proposalAcceptPOST)))
	mux.Handle("POST /profile/proceed", mustSession(http.HandlerFunc(app.proceedPOST)))

	mux.Handle("GET /calendar", mustSession(http.HandlerFunc(app.calendarGET)))
	mux.Handle("GET /calendar/{date}/feedback", mustSession(http.HandlerFunc(app.feedbackGET)))
	mux.Handle("POST /calendar/{date}/feedback", mustSession(http.HandlerFunc(app.feedbackPOST)))
	mux.Handle("GET /calendar/{date}/unplanned", mustSession(http.HandlerFunc(app.unplannedGET)))
	mux.Handle("POST /calendar/{date}/unplanned", mustSession(http.HandlerFunc(app.unplannedPOST)))

	mux.Handle("GET /plan/week", mustSession(http.HandlerFunc(app.weekGET)))
	mux.Handle("GET /plan/overview", mustSession(http.HandlerFunc(app.overviewGET)))

	mux.Handle("GET /api/healthy", noAuth(http.HandlerFunc(app.healthy)))
	mux.Handle("POST /api/csp-violation", noAuth(http.HandlerFunc(app.cspViolation)))

	mux.Handle("GET /{$}", session(http.HandlerFunc(app.home)))

	// File server with custom 404 handling
	fileServerHandler, err := app.fileServerHandler()
	if err != nil {
		return nil, fmt.Errorf("fileServerHandler: %w", err)
	}
	mux.Handle("/", fileServerHandler)

	return mux, nil
}
