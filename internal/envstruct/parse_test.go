package envstruct_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/runcoach/internal/envstruct"
)

func TestPopulate(t *testing.T) {
	unset := func(_ string) (string, bool) { return "", false }
	tests := []struct {
		name      string
		v         any
		lookupEnv func(string) (string, bool)
		want      any
		wantErr   error
	}{
		{
			name:      "nil",
			v:         nil,
			lookupEnv: unset,
			want:      nil,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "not pointer",
			v:         struct{}{},
			lookupEnv: unset,
			want:      nil,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "empty struct",
			v:         &struct{}{},
			lookupEnv: unset,
			want:      &struct{}{},
			wantErr:   nil,
		},
		{
			name: "missing without default",
			v: &struct { //nolint:exhaustruct // populated later
				APIURL string `env:"RUNCOACH_API_URL"`
			}{},
			lookupEnv: unset,
			want:      nil,
			wantErr:   envstruct.ErrEnvNotSet,
		},
		{
			name: "picks correct env variable",
			v: &struct { //nolint:exhaustruct // populated later
				Addr       string `env:"RUNCOACH_ADDR"`
				APIURL     string `env:"RUNCOACH_API_URL"`
				OtherValue string
			}{},
			lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			want: &struct {
				Addr       string `env:"RUNCOACH_ADDR"`
				APIURL     string `env:"RUNCOACH_API_URL"`
				OtherValue string
			}{Addr: "runcoach_addr", APIURL: "runcoach_api_url", OtherValue: ""},
			wantErr: nil,
		},
		{
			name: "defaults for every supported type",
			v: &struct { //nolint:exhaustruct // populated later
				Addr         string        `env:"RUNCOACH_ADDR" envDefault:"localhost:8082"`
				OpenBrowser  bool          `env:"RUNCOACH_OPEN_BROWSER" envDefault:"false"`
				MaxRetries   int           `env:"RUNCOACH_MAX_RETRIES" envDefault:"3"`
				PollInterval time.Duration `env:"RUNCOACH_POLL_INTERVAL" envDefault:"2s"`
			}{},
			lookupEnv: unset,
			want: &struct {
				Addr         string        `env:"RUNCOACH_ADDR" envDefault:"localhost:8082"`
				OpenBrowser  bool          `env:"RUNCOACH_OPEN_BROWSER" envDefault:"false"`
				MaxRetries   int           `env:"RUNCOACH_MAX_RETRIES" envDefault:"3"`
				PollInterval time.Duration `env:"RUNCOACH_POLL_INTERVAL" envDefault:"2s"`
			}{Addr: "localhost:8082", OpenBrowser: false, MaxRetries: 3, PollInterval: 2 * time.Second},
			wantErr: nil,
		},
		{
			name: "env overrides default",
			v: &struct { //nolint:exhaustruct // populated later
				OpenBrowser  bool          `env:"RUNCOACH_OPEN_BROWSER" envDefault:"false"`
				PollInterval time.Duration `env:"RUNCOACH_POLL_INTERVAL" envDefault:"2s"`
			}{},
			lookupEnv: func(s string) (string, bool) {
				if s == "RUNCOACH_OPEN_BROWSER" {
					return "true", true
				}
				return "500ms", true
			},
			want: &struct {
				OpenBrowser  bool          `env:"RUNCOACH_OPEN_BROWSER" envDefault:"false"`
				PollInterval time.Duration `env:"RUNCOACH_POLL_INTERVAL" envDefault:"2s"`
			}{OpenBrowser: true, PollInterval: 500 * time.Millisecond},
			wantErr: nil,
		},
		{
			name: "invalid duration",
			v: &struct { //nolint:exhaustruct // populated later
				PollInterval time.Duration `env:"RUNCOACH_POLL_INTERVAL"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "often", true },
			want:      nil,
			wantErr:   envstruct.ErrParse,
		},
		{
			name: "invalid bool",
			v: &struct { //nolint:exhaustruct // populated later
				OpenBrowser bool `env:"RUNCOACH_OPEN_BROWSER"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "maybe", true },
			want:      nil,
			wantErr:   envstruct.ErrParse,
		},
		{
			name: "unsupported type",
			v: &struct { //nolint:exhaustruct // populated later
				Ratio float64 `env:"RUNCOACH_RATIO"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "1.5", true },
			want:      nil,
			wantErr:   envstruct.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := envstruct.Populate(tt.v, tt.lookupEnv)

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Populate() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Populate() unexpected error = %v", err)
				}
				if diff := cmp.Diff(tt.want, tt.v); diff != "" {
					t.Errorf("Populate() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}
