// Package flightrecorder keeps a rolling runtime trace in memory and writes it to disk when something went slow, such
// as a request cut off by the timeout middleware.
package flightrecorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"
)

const (
	defaultMinAge   = 2 * time.Minute
	defaultMaxBytes = 32 * 1024 * 1024
	defaultCooldown = 30 * time.Minute
)

// Recorder snapshots the in-memory trace at most once per cooldown.
type Recorder struct {
	logger    *slog.Logger
	recorder  *trace.FlightRecorder
	directory string
	cooldown  time.Duration
	// lastCapture is the Unix time of the latest snapshot.
	lastCapture atomic.Int64
}

type Config struct {
	Logger *slog.Logger
	// Directory receives the trace files. It is created when missing.
	Directory string
	// MinAge, MaxBytes and Cooldown fall back to defaults when zero.
	MinAge   time.Duration
	MaxBytes uint64
	Cooldown time.Duration
}

// New prepares a recorder. Call [Recorder.Start] to begin tracing.
func New(cfg Config) (*Recorder, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Directory == "" {
		return nil, errors.New("trace directory is required")
	}
	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil { //nolint:mnd // owner and group.
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	if stat, err := os.Stat(cfg.Directory); err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("trace path %s is not a directory", cfg.Directory)
	}

	r := &Recorder{
		logger:    cfg.Logger,
		recorder:  nil,
		directory: cfg.Directory,
		cooldown:  cfg.Cooldown,
	}
	if r.cooldown == 0 {
		r.cooldown = defaultCooldown
	}
	minAge, maxBytes := cfg.MinAge, cfg.MaxBytes
	if minAge == 0 {
		minAge = defaultMinAge
	}
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}
	r.recorder = trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: minAge, MaxBytes: maxBytes})
	return r, nil
}

func (r *Recorder) Start(ctx context.Context) error {
	if err := r.recorder.Start(); err != nil {
		return fmt.Errorf("start flight recorder: %w", err)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("directory", r.directory), slog.Duration("cooldown", r.cooldown))
	return nil
}

func (r *Recorder) Stop(ctx context.Context) {
	r.recorder.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the recent trace to <reason>-<UTC timestamp>.trace unless a snapshot was taken within the cooldown.
func (r *Recorder) Capture(ctx context.Context, reason string) {
	now := time.Now()
	last := r.lastCapture.Load()
	if last > 0 && now.Sub(time.Unix(last, 0)) < r.cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "trace capture cooling down",
			slog.String("reason", reason), slog.Time("last_capture", time.Unix(last, 0)))
		return
	}
	if !r.lastCapture.CompareAndSwap(last, now.Unix()) {
		return
	}

	path := filepath.Join(r.directory, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405")))
	file, err := os.Create(path)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "create trace file", slog.String("file", path), slog.Any("error", err))
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "close trace file",
				slog.String("file", path), slog.Any("error", closeErr))
		}
	}()
	written, err := r.recorder.WriteTo(file)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "write trace", slog.String("file", path), slog.Any("error", err))
		return
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace",
		slog.String("reason", reason), slog.String("file", path), slog.Int64("bytes", written))
}
