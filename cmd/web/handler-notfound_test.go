package main

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func Test_application_notFound(t *testing.T) {
	ctx := t.Context()
	server, _ := startServer(t)
	client := server.Client()

	tests := []struct {
		name string
		path string
	}{
		{name: "Unknown page", path: "/does-not-exist"},
		{name: "Directory listing", path: "/static/"},
		{name: "Path traversal", path: "/..%2f..%2fgo.mod"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Get(ctx, tt.path)
			if err != nil {
				t.Fatalf("Failed to get %s: %v", tt.path, err)
			}
			defer func() {
				_ = resp.Body.Close()
			}()
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("Expected status code %d, got %d", http.StatusNotFound, resp.StatusCode)
			}
			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				t.Fatalf("Failed to parse 404 document: %v", err)
			}
			if got := doc.Find("h2").Text(); got != "Page Not Found" {
				t.Errorf("Expected custom 404 page, got heading %q", got)
			}
			if doc.Find("a[href='/']").Length() == 0 {
				t.Error("Expected a link back home")
			}
		})
	}

	t.Run("Static files are served", func(t *testing.T) {
		resp, err := client.Get(ctx, "/main.css")
		if err != nil {
			t.Fatalf("Failed to get stylesheet: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
		}
		if got := resp.Header.Get("Cache-Control"); !strings.Contains(got, "immutable") {
			t.Errorf("Expected static files to be cached, got %q", got)
		}
	})
}

func Test_application_crossOriginProtection(t *testing.T) {
	ctx := t.Context()
	server, _ := startServer(t)

	form := url.Values{"email": {"mallory@example.com"}, "password": {testPassword}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL()+"/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to post: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status code %d for a cross-site post, got %d", http.StatusForbidden, resp.StatusCode)
	}
}
