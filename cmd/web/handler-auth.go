package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/myrjola/runcoach/internal/coachapi"
	"github.com/myrjola/runcoach/internal/errors"
)

const minPasswordLength = 8

type authTemplateData struct {
	BaseTemplateData
	Email  string
	Errors map[string]string
}

func (app *application) loginGET(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "login", authTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Email:            "",
		Errors:           nil,
	})
}

func (app *application) registerGET(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "register", authTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Email:            "",
		Errors:           nil,
	})
}

func (app *application) loginPOST(w http.ResponseWriter, r *http.Request) {
	app.authenticateWith(w, r, "login", app.coach.Login)
}

func (app *application) registerPOST(w http.ResponseWriter, r *http.Request) {
	app.authenticateWith(w, r, "register", app.coach.Register)
}

// authenticateWith validates the credentials form, obtains a token with exchange and signs the session in.
func (app *application) authenticateWith(
	w http.ResponseWriter,
	r *http.Request,
	page string,
	exchange func(ctx context.Context, email, password string) (coachapi.Token, error),
) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	data := authTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Email:            strings.TrimSpace(r.PostForm.Get("email")),
		Errors:           map[string]string{},
	}
	password := r.PostForm.Get("password")
	if data.Email == "" || !strings.Contains(data.Email, "@") {
		data.Errors["email"] = "Enter a valid email address"
	}
	if password == "" {
		data.Errors["password"] = "Password is required"
	} else if page == "register" && len(password) < minPasswordLength {
		data.Errors["password"] = "Password must be at least 8 characters"
	}
	if page == "register" && password != r.PostForm.Get("confirm_password") {
		data.Errors["confirm_password"] = "Passwords do not match"
	}
	if len(data.Errors) > 0 {
		app.render(w, r, http.StatusUnprocessableEntity, page, data)
		return
	}

	token, err := exchange(ctx, data.Email, password)
	if err == nil {
		var user coachapi.User
		if user, err = app.coach.Me(ctx, token.AccessToken); err == nil {
			if err = app.signIn(ctx, token, user); err != nil {
				app.serverError(w, r, err)
				return
			}
			redirect(w, r, "/")
			return
		}
	}

	var apiErr *coachapi.Error
	if !errors.As(err, &apiErr) {
		app.backendError(w, r, err)
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "authentication refused", errors.SlogError(err))
	data.Errors["form"] = apiErr.Detail
	app.render(w, r, http.StatusUnprocessableEntity, page, data)
}

func (app *application) logoutPOST(w http.ResponseWriter, r *http.Request) {
	if err := app.signOut(r); err != nil {
		app.serverError(w, r, err)
		return
	}
	redirect(w, r, "/login")
}
