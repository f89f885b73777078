package flightrecorder_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/runcoach/internal/flightrecorder"
	"github.com/myrjola/runcoach/internal/testhelpers"
)

func newRecorder(t *testing.T, dir string, cooldown time.Duration) *flightrecorder.Recorder {
	t.Helper()
	r, err := flightrecorder.New(flightrecorder.Config{
		Logger:    testhelpers.NewLogger(testhelpers.NewWriter(t)),
		Directory: dir,
		MinAge:    0,
		MaxBytes:  0,
		Cooldown:  cooldown,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err = r.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { r.Stop(t.Context()) })
	return r
}

func TestNew_requiresDirectory(t *testing.T) {
	_, err := flightrecorder.New(flightrecorder.Config{
		Logger:    testhelpers.NewLogger(testhelpers.NewWriter(t)),
		Directory: "",
		MinAge:    0,
		MaxBytes:  0,
		Cooldown:  0,
	})
	if err == nil {
		t.Fatal("expected error without a trace directory")
	}
}

func TestRecorder_Capture(t *testing.T) {
	dir := t.TempDir()
	r := newRecorder(t, dir, 0)

	r.Capture(t.Context(), "request-timeout")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read trace directory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one trace file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "request-timeout-") || !strings.HasSuffix(name, ".trace") {
		t.Errorf("unexpected trace file name %s", name)
	}
}

func TestRecorder_CaptureCoolsDown(t *testing.T) {
	dir := t.TempDir()
	r := newRecorder(t, dir, time.Hour)

	r.Capture(t.Context(), "request-timeout")
	r.Capture(t.Context(), "request-timeout")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read trace directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected the cooldown to keep a single trace file, got %d", len(entries))
	}
}
