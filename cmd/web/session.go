package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/myrjola/runcoach/internal/coachapi"
	"github.com/myrjola/runcoach/internal/contexthelpers"
	"github.com/myrjola/runcoach/internal/profileform"
	"github.com/myrjola/runcoach/internal/viewstate"
)

// Keys of the values kept in the web session.
const (
	sessionKeyID          = "session_id"
	sessionKeyToken       = "token"
	sessionKeyUserID      = "user_id"
	sessionKeyEmail       = "email"
	sessionKeyProfileForm = "profile_form"
	sessionKeyEditing     = "editing"
	sessionKeySubView     = "sub_view"
)

// signIn stores the bearer token of the runner in a fresh session.
func (app *application) signIn(ctx context.Context, token coachapi.Token, user coachapi.User) error {
	if err := app.sessionManager.RenewToken(ctx); err != nil {
		return fmt.Errorf("renew session token: %w", err)
	}
	sessionID := rand.Text()
	app.sessionManager.Put(ctx, sessionKeyID, sessionID)
	app.sessionManager.Put(ctx, sessionKeyToken, token.AccessToken)
	app.sessionManager.Put(ctx, sessionKeyUserID, strconv.Itoa(user.ID))
	app.sessionManager.Put(ctx, sessionKeyEmail, user.Email)
	app.logger.LogAttrs(ctx, slog.LevelInfo, "signed in",
		slog.String("session", hashSessionID(sessionID)), slog.Int("user_id", user.ID))
	return nil
}

// signOut stops the plan state of the session and clears everything the session held.
func (app *application) signOut(r *http.Request) error {
	ctx := r.Context()
	sessionID := app.sessionManager.GetString(ctx, sessionKeyID)
	if sessionID != "" {
		app.providers.Drop(sessionID)
	}
	if err := app.sessionManager.Destroy(ctx); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// hashSessionID identifies a session in logs without revealing the identifier.
func hashSessionID(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:8])
}

// loadProfileForm returns the wizard state of the session.
func (app *application) loadProfileForm(ctx context.Context) (profileform.Form, bool) {
	raw := app.sessionManager.GetBytes(ctx, sessionKeyProfileForm)
	if len(raw) == 0 {
		return profileform.Form{}, false
	}
	var form profileform.Form
	if err := json.Unmarshal(raw, &form); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "discarding unreadable profile form", slog.Any("error", err))
		app.sessionManager.Remove(ctx, sessionKeyProfileForm)
		return profileform.Form{}, false
	}
	return form, true
}

func (app *application) saveProfileForm(ctx context.Context, form profileform.Form) error {
	raw, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("marshal profile form: %w", err)
	}
	app.sessionManager.Put(ctx, sessionKeyProfileForm, raw)
	return nil
}

// finishEditing forgets the wizard state once the profile is submitted or the edit is abandoned.
func (app *application) finishEditing(ctx context.Context) {
	app.sessionManager.Remove(ctx, sessionKeyProfileForm)
	app.sessionManager.Remove(ctx, sessionKeyEditing)
}

// localState collects the routing inputs that live in the web session.
func (app *application) localState(ctx context.Context) viewstate.Local {
	return viewstate.Local{
		Editing: app.sessionManager.GetBool(ctx, sessionKeyEditing),
		SubView: viewstate.ParseSubView(app.sessionManager.GetString(ctx, sessionKeySubView)),
	}
}

// userEmail is the email of the signed-in runner, shown in the navigation.
func (app *application) userEmail(r *http.Request) string {
	if !contexthelpers.IsAuthenticated(r.Context()) {
		return ""
	}
	return app.sessionManager.GetString(r.Context(), sessionKeyEmail)
}
