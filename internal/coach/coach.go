// Package coach defines the data shapes exchanged with the coaching backend and the locally tracked training log.
package coach

import (
	"strings"

	"github.com/myrjola/runcoach/internal/errors"
)

// ErrUnknownVariant is returned when a discriminated JSON value carries an unrecognised tag.
var ErrUnknownVariant = errors.NewSentinel("unknown variant")

// Status is the progress of an asynchronous backend job. The zero value means the job has not started.
type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// UnmarshalText maps anything other than the known statuses, including "none", to StatusNone.
func (s *Status) UnmarshalText(text []byte) error {
	switch v := Status(text); v {
	case StatusPending, StatusCompleted, StatusError:
		*s = v
	default:
		*s = StatusNone
	}
	return nil
}

// DayOfWeek is a weekday name as used by the backend.
type DayOfWeek string

const (
	Monday    DayOfWeek = "Monday"
	Tuesday   DayOfWeek = "Tuesday"
	Wednesday DayOfWeek = "Wednesday"
	Thursday  DayOfWeek = "Thursday"
	Friday    DayOfWeek = "Friday"
	Saturday  DayOfWeek = "Saturday"
	Sunday    DayOfWeek = "Sunday"
)

// Week lists the weekdays in calendar order starting from Monday.
//
//nolint:gochecknoglobals // read-only lookup table.
var Week = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Short returns the three letter abbreviation.
func (d DayOfWeek) Short() string {
	if len(d) < 3 { //nolint:mnd // abbreviation length.
		return string(d)
	}
	return string(d[:3])
}

// RunType classifies a running session.
type RunType string

const (
	RunEasy           RunType = "easy"
	RunRecovery       RunType = "recovery"
	RunLong           RunType = "long_run"
	RunTempo          RunType = "tempo"
	RunInterval       RunType = "interval"
	RunFartlek        RunType = "fartlek"
	RunRaceSimulation RunType = "race_simulation"
)

// RunTypes lists the run types in legend order.
//
//nolint:gochecknoglobals // read-only lookup table.
var RunTypes = []RunType{RunEasy, RunRecovery, RunLong, RunTempo, RunInterval, RunFartlek, RunRaceSimulation}

// Label is the human readable name, e.g. "Long Run" for long_run.
func (r RunType) Label() string {
	words := strings.Split(string(r), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Valid reports whether r is one of RunTypes.
func (r RunType) Valid() bool {
	for _, known := range RunTypes {
		if r == known {
			return true
		}
	}
	return false
}
