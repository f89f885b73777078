package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/myrjola/runcoach/internal/e2etest"
	"github.com/myrjola/runcoach/internal/logging"
	"github.com/myrjola/runcoach/internal/testhelpers"
)

// checkLoginPage verifies that an anonymous visitor is sent to a working sign in form.
func checkLoginPage(ctx context.Context, client *e2etest.Client) error {
	doc, err := client.GetDoc(ctx, "/")
	if err != nil {
		return fmt.Errorf("get front page: %w", err)
	}
	if _, err = e2etest.FindForm(doc, "/login"); err != nil {
		return fmt.Errorf("front page without login form: %w", err)
	}
	return nil
}

// checkAuth signs in with an existing account and signs out again.
func checkAuth(ctx context.Context, client *e2etest.Client, email, password string) error {
	doc, err := client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login user: %w", err)
	}
	if doc.Find("form[action='/logout']").Length() == 0 {
		if msg := strings.TrimSpace(doc.Find("[role=alert]").Text()); msg != "" {
			return fmt.Errorf("login refused: %s", msg)
		}
		return errors.New("login did not sign in")
	}
	if _, err = client.Logout(ctx, doc); err != nil {
		return fmt.Errorf("logout user: %w", err)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		client   *e2etest.Client
		err      error
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", slog.Any("error", err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}
	if err = checkLoginPage(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error checking login page", slog.Any("error", err))
		os.Exit(1)
	}
	// The backend owns the accounts, so signing in is only checked when a test account is provided.
	if email, password := os.Getenv("SMOKETEST_EMAIL"), os.Getenv("SMOKETEST_PASSWORD"); email != "" {
		if err = checkAuth(ctx, client, email, password); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "error testing auth", slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
	os.Exit(0)
}
