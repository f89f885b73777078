package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

func Test_application_plan(t *testing.T) {
	var (
		ctx = t.Context()
		doc *goquery.Document
		err error
	)
	server, backend := startServer(t)
	client := server.Client()
	loginWithPlan(t, client, backend, "dorothy@example.com")

	t.Run("Weekly view", func(t *testing.T) {
		if doc, err = client.GetDoc(ctx, "/plan/week"); err != nil {
			t.Fatalf("Failed to get week: %v", err)
		}
		if got := pageTitle(doc); !strings.HasPrefix(got, "Week 1") || !strings.Contains(got, "Base phase") {
			t.Errorf("Unexpected week title %q", got)
		}
		if doc.Find(".week-nav a").Length() != 0 {
			t.Error("Expected no week navigation with a single generated week")
		}
		if got := doc.Find(".phase-focus strong").Text(); got != "aerobic" {
			t.Errorf("Expected the phase focus markdown, got %q", got)
		}
		if n := doc.Find("ol.days > li").Length(); n != 7 {
			t.Errorf("Expected seven days, got %d", n)
		}
		strength := doc.Find(".session-strength")
		if strength.Length() != 1 || !strings.Contains(strength.Text(), "Plank 3 x 30s hold") {
			t.Errorf("Expected the strength session with its prescription, got %q", strength.Text())
		}
	})

	t.Run("Home remembers the selected plan page", func(t *testing.T) {
		if doc, err = client.GetDoc(ctx, "/"); err != nil {
			t.Fatalf("Failed to get home: %v", err)
		}
		checkPath(t, doc, "/plan/week")
	})

	t.Run("Unknown week is not found", func(t *testing.T) {
		for _, week := range []string{"2", "first"} {
			resp, getErr := client.Get(ctx, "/plan/week?week="+week)
			if getErr != nil {
				t.Fatalf("Failed to get: %v", getErr)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("week=%s: expected status %d, got %d", week, http.StatusNotFound, resp.StatusCode)
			}
		}
	})

	t.Run("Training plan overview", func(t *testing.T) {
		if doc, err = client.GetDoc(ctx, "/plan/overview"); err != nil {
			t.Fatalf("Failed to get overview: %v", err)
		}
		checkTitle(t, doc, "Your Training Plan")
		if got := strings.TrimSpace(doc.Find(".weeks").Text()); got != "4 weeks to your goal" {
			t.Errorf("Unexpected plan length %q", got)
		}
		targets := doc.Find(".targets dd").Map(func(_ int, s *goquery.Selection) string {
			return strings.TrimSpace(s.Text())
		})
		if diff := cmp.Diff([]string{"42 km", "18 km"}, targets); diff != "" {
			t.Errorf("Targets mismatch (-want +got):\n%s", diff)
		}
		spans := doc.Find(".phases .span").Map(func(_ int, s *goquery.Selection) string {
			return strings.TrimSpace(s.Text())
		})
		if diff := cmp.Diff([]string{"Weeks 1-2", "Week 3", "Week 4"}, spans); diff != "" {
			t.Errorf("Phase spans mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Signed out runner is sent to login", func(t *testing.T) {
		other := newClient(t, server)
		if doc, err = other.GetDoc(ctx, "/plan/overview"); err != nil {
			t.Fatalf("Failed to get overview: %v", err)
		}
		checkPath(t, doc, "/login")
	})
}
