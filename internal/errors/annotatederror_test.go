package errors_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/runcoach/internal/errors"
	"github.com/myrjola/runcoach/internal/testhelpers"
)

func TestAnnotatedError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "sentinel",
			err:  errors.NewSentinel("backend unavailable"),
			want: "backend unavailable",
		},
		{
			name: "new",
			err:  errors.New("poll gave up", slog.Int("attempts", 3)),
			want: "poll gave up",
		},
		{
			name: "annotated error",
			err:  errors.Wrap(errors.NewSentinel("root cause"), "fetch user state", slog.String("status", "pending")),
			want: "fetch user state: root cause",
		},
		{
			name: "nested annotated error",
			err: errors.Wrap(
				errors.Wrap(errors.NewSentinel("root cause"), "inner context"),
				"outer context",
			),
			want: "outer context: inner context: root cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := errors.Wrap(nil, "nothing to wrap"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestIsAndUnwrap(t *testing.T) {
	rootErr := errors.NewSentinel("root error")
	wrappedErr := errors.Wrap(rootErr, "context")

	if !errors.Is(wrappedErr, rootErr) {
		t.Errorf("Is() = false, want true for wrapped error")
	}
	if errors.Is(wrappedErr, errors.NewSentinel("root error")) {
		t.Errorf("Is() = true, want false for a different sentinel with the same message")
	}
	if unwrapped := errors.Unwrap(fmt.Errorf("context: %w", rootErr)); !errors.Is(unwrapped, rootErr) {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, rootErr)
	}
	if unwrapped := errors.Unwrap(rootErr); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

func TestAs(t *testing.T) {
	rootErr := &statusError{code: 502}
	wrappedErr := errors.Wrap(rootErr, "context")

	var target *statusError
	if !errors.As(wrappedErr, &target) {
		t.Fatalf("As() = false, want true")
	}
	if target.code != 502 {
		t.Errorf("As() target code = %d, want 502", target.code)
	}
}

func TestSlogError(t *testing.T) {
	err := errors.Wrap(errors.NewSentinel("root cause"), "context",
		slog.String("key", "value"), slog.Duration("duration", time.Second))
	var buf bytes.Buffer
	l := testhelpers.NewLogger(&buf)
	l.Info("test", errors.SlogError(err))
	logLine := buf.String()
	for _, content := range []string{
		"error.message=\"context: root cause\"",
		"error.annotations.key=value",
		"error.annotations.duration=1s",
		"annotatederror_test.go:",
	} {
		if !strings.Contains(logLine, content) {
			t.Errorf("expected log line %s to contain %s", logLine, content)
		}
	}
	if strings.Contains(logLine, "annotatederror.go") {
		t.Fatal("expected annotatederror.go NOT to be in log line")
	}

	// None of these may panic.
	errors.SlogError(errors.Join(nil, nil, errors.NewSentinel("sentinel"), errors.New("test")))
	errors.SlogError(nil)
	errors.SlogError(fmt.Errorf("test: %w", errors.NewSentinel("sentinel")))
	errors.SlogError(errors.Join(errors.NewSentinel("sentinel1"), errors.NewSentinel("sentinel2")))
	errors.SlogError(errors.Wrap(errors.Join(nil, nil), "wrap error"))
}

func TestDecoratePanic(t *testing.T) {
	defer func() {
		err := errors.DecoratePanic(recover())
		if err == nil {
			t.Fatal("expected error")
		}
		if got, want := err.Error(), "panic: test"; got != want {
			t.Errorf("err.Error(): got %q, want %q", got, want)
		}
		if got := errors.SlogError(err).String(); !strings.Contains(got, "annotatederror_test.go:") {
			t.Errorf("attr.String(): expected %q to point at the panicking test", got)
		}
	}()
	panic("test")
}
