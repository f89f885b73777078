// Package errors is a drop-in replacement for the standard library errors package that records where an error was
// wrapped and lets callers attach [slog.Attr] annotations that end up in the structured log line.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
)

// annotatedError wraps a cause with a message, structured annotations, and the program counter of the wrap site.
type annotatedError struct {
	msg   string
	cause error
	attrs []slog.Attr
	pc    uintptr
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// sentinelError carries no stack information and is meant for package level error variables.
type sentinelError struct {
	msg string
}

func (e *sentinelError) Error() string {
	return e.msg
}

// NewSentinel creates an error suitable for package level variables compared with [Is].
func NewSentinel(msg string) error {
	return &sentinelError{msg: msg}
}

// New creates an error that remembers the caller's location.
func New(msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, cause: nil, attrs: attrs, pc: callerPC()}
}

// Wrap annotates err with msg and attrs. Wrap returns nil when err is nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return &annotatedError{msg: msg, cause: err, attrs: attrs, pc: callerPC()}
}

// callerPC returns the program counter of the function calling New or Wrap.
func callerPC() uintptr {
	var pcs [1]uintptr
	// Skip runtime.Callers, callerPC and the exported constructor.
	runtime.Callers(3, pcs[:]) //nolint:mnd // see above
	return pcs[0]
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// DecoratePanic converts a value recovered from a panic into an error pointing at the panicking line.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	var pcs [32]uintptr
	n := runtime.Callers(1, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	var (
		pc           uintptr
		afterGopanic bool
	)
	for {
		frame, more := frames.Next()
		if afterGopanic {
			pc = frame.PC
			break
		}
		if frame.Function == "runtime.gopanic" {
			afterGopanic = true
		}
		if !more {
			break
		}
	}
	msg := fmt.Sprintf("panic: %v", recovered)
	if err, ok := recovered.(error); ok {
		return &annotatedError{msg: "panic", cause: err, attrs: nil, pc: pc}
	}
	return &annotatedError{msg: msg, cause: nil, attrs: nil, pc: pc}
}

// SlogError renders err as an "error" group with the message, annotations collected along the chain, and the
// source location of the innermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Group("error", slog.String("message", "<nil>"))
	}
	var (
		annotations []any
		source      string
	)
	walk(err, func(e *annotatedError) {
		for _, a := range e.attrs {
			annotations = append(annotations, a)
		}
		if e.pc != 0 {
			source = formatPC(e.pc)
		}
	})
	attrs := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	return slog.Group("error", attrs...)
}

// walk visits every annotatedError in err's tree, outermost first.
func walk(err error, visit func(*annotatedError)) {
	if err == nil {
		return
	}
	if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // we traverse the tree manually.
		visit(ae)
	}
	switch x := err.(type) { //nolint:errorlint // we traverse the tree manually.
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			walk(e, visit)
		}
	case interface{ Unwrap() error }:
		walk(x.Unwrap(), visit)
	}
}

func formatPC(pc uintptr) string {
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	file := frame.File
	if i := strings.LastIndex(file, "/"); i >= 0 {
		if j := strings.LastIndex(file[:i], "/"); j >= 0 {
			file = file[j+1:]
		}
	}
	return file + ":" + strconv.Itoa(frame.Line)
}
