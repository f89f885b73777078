package planstate_test

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/coachapi"
	"github.com/myrjola/runcoach/internal/errors"
	"github.com/myrjola/runcoach/internal/planstate"
	"github.com/myrjola/runcoach/internal/poll"
	"github.com/myrjola/runcoach/internal/testhelpers"
)

// fakeBackend replays scripted responses. The last response repeats once the script runs out.
type fakeBackend struct {
	mu            sync.Mutex
	states        []coach.UserState
	stateErr      error
	stateCalls    int
	verifications []coach.VerificationStatus
	verifyErr     error
	verifyCalls   int
	proceeded     bool
	release       chan struct{}
}

func (f *fakeBackend) UserState(ctx context.Context, _ string) (coach.UserState, error) {
	f.mu.Lock()
	f.stateCalls++
	i := min(f.stateCalls, len(f.states)) - 1
	release, err := f.release, f.stateErr
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return coach.UserState{}, ctx.Err()
		}
	}
	if err != nil {
		return coach.UserState{}, err
	}
	return f.states[i], nil
}

func (f *fakeBackend) Proceed(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proceeded = true
	return nil
}

func (f *fakeBackend) Verification(context.Context, string) (coach.VerificationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return coach.VerificationStatus{}, f.verifyErr
	}
	return f.verifications[min(f.verifyCalls, len(f.verifications))-1], nil
}

func (f *fakeBackend) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateCalls, f.verifyCalls
}

func newRegistry(t *testing.T, backend planstate.Backend) *planstate.Registry {
	t.Helper()
	registry := planstate.NewRegistry(t.Context(), backend, poll.DefaultPolicy(),
		testhelpers.NewLogger(testhelpers.NewWriter(t)))
	t.Cleanup(registry.Close)
	return registry
}

//nolint:gochecknoglobals // fixtures.
var (
	verifying = coach.UserState{HasProfile: true, VerificationStatus: coach.StatusPending}
	planning  = coach.UserState{
		HasProfile:         true,
		VerificationStatus: coach.StatusCompleted,
		VerificationResult: &coach.VerificationResult{Outcome: coach.OutcomeOK},
		MacroplanStatus:    coach.StatusPending,
	}
	ready = coach.UserState{
		HasProfile:         true,
		VerificationStatus: coach.StatusCompleted,
		VerificationResult: &coach.VerificationResult{Outcome: coach.OutcomeOK},
		MacroplanStatus:    coach.StatusCompleted,
		WeeklyPlanStatus:   coach.StatusCompleted,
		PlanStartDate:      "2024-01-01",
		WeeklySchedules:    []coach.WeeklySchedule{{WeekNumber: 1}},
	}
)

func TestProvider_StateIsCached(t *testing.T) {
	backend := &fakeBackend{states: []coach.UserState{ready}}
	p := newRegistry(t, backend).Provider("session", "token")

	for range 3 {
		state, err := p.State(t.Context())
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if !state.HasSchedules() {
			t.Fatalf("State() = %+v", state)
		}
	}
	if calls, _ := backend.calls(); calls != 1 {
		t.Errorf("backend calls = %d, want 1", calls)
	}
	if p.FetchedAt().IsZero() {
		t.Errorf("FetchedAt() is zero after a fetch")
	}
}

func TestProvider_RefreshSharesInflightRequest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{states: []coach.UserState{ready}, release: make(chan struct{})}
		p := newRegistry(t, backend).Provider("session", "token")

		var wg sync.WaitGroup
		results := make([]*coach.UserState, 5)
		for i := range results {
			wg.Go(func() {
				state, err := p.Refresh(t.Context())
				if err != nil {
					t.Errorf("Refresh: %v", err)
				}
				results[i] = state
			})
		}
		synctest.Wait()
		close(backend.release)
		wg.Wait()

		if calls, _ := backend.calls(); calls != 1 {
			t.Errorf("backend calls = %d, want 1", calls)
		}
		for i, state := range results {
			if state != results[0] {
				t.Errorf("result %d differs from the shared one", i)
			}
		}
	})
}

func TestProvider_RefreshOutlivesCancelledCaller(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{states: []coach.UserState{ready}, release: make(chan struct{})}
		p := newRegistry(t, backend).Provider("session", "token")

		var (
			wg                  sync.WaitGroup
			firstErr, secondErr error
			secondState         *coach.UserState
		)
		gone, cancelGone := context.WithCancel(t.Context())
		wg.Go(func() {
			_, firstErr = p.Refresh(gone)
		})
		synctest.Wait()
		wg.Go(func() {
			secondState, secondErr = p.Refresh(t.Context())
		})
		synctest.Wait()
		cancelGone()
		synctest.Wait()
		close(backend.release)
		wg.Wait()

		if !errors.Is(firstErr, context.Canceled) {
			t.Errorf("cancelled caller err = %v, want context.Canceled", firstErr)
		}
		if secondErr != nil || !secondState.HasSchedules() {
			t.Errorf("waiting caller got %+v, %v, want the ready state", secondState, secondErr)
		}
		if calls, _ := backend.calls(); calls != 1 {
			t.Errorf("backend calls = %d, want 1", calls)
		}
	})
}

func TestProvider_WatchUntilDone(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{states: []coach.UserState{planning, planning, ready}}
		p := newRegistry(t, backend).Provider("session", "token")

		if _, err := p.State(t.Context()); err != nil {
			t.Fatalf("State: %v", err)
		}
		p.Watch()
		p.Watch()
		if !p.Watching() {
			t.Fatalf("Watching() = false after Watch")
		}

		time.Sleep(time.Minute)
		synctest.Wait()

		if p.Watching() {
			t.Errorf("poll loop still runs after the jobs finished")
		}
		state, err := p.State(t.Context())
		if err != nil || !state.HasSchedules() {
			t.Errorf("State() = %+v, %v, want the ready state", state, err)
		}
		// The initial fetch plus polls at 0s and 2s.
		if calls, _ := backend.calls(); calls != 3 {
			t.Errorf("backend calls = %d, want 3", calls)
		}
	})
}

func TestProvider_WatchStopsOnError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{states: []coach.UserState{planning}}
		p := newRegistry(t, backend).Provider("session", "token")
		if _, err := p.State(t.Context()); err != nil {
			t.Fatalf("State: %v", err)
		}

		backend.mu.Lock()
		backend.stateErr = &coachapi.Error{StatusCode: 401, Detail: "Could not validate credentials"}
		backend.mu.Unlock()
		p.Watch()
		time.Sleep(time.Minute)
		synctest.Wait()

		if _, err := p.State(t.Context()); !errors.Is(err, coachapi.ErrUnauthorized) {
			t.Errorf("State() err = %v, want ErrUnauthorized", err)
		}
		if calls, _ := backend.calls(); calls != 2 {
			t.Errorf("backend calls = %d, want 2", calls)
		}
	})
}

func TestProvider_WatchTimesOut(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{states: []coach.UserState{planning}}
		p := newRegistry(t, backend).Provider("session", "token")
		if _, err := p.State(t.Context()); err != nil {
			t.Fatalf("State: %v", err)
		}

		p.Watch()
		time.Sleep(11 * time.Minute)
		synctest.Wait()

		if _, err := p.State(t.Context()); !errors.Is(err, poll.ErrTimeout) {
			t.Errorf("State() err = %v, want ErrTimeout", err)
		}
		if _, err := p.Refresh(t.Context()); err != nil {
			t.Errorf("Refresh after timeout: %v", err)
		}
		if _, err := p.State(t.Context()); err != nil {
			t.Errorf("State() after a successful refresh err = %v", err)
		}
	})
}

func TestProvider_WatchVerification(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		result := &coach.VerificationResult{Outcome: coach.OutcomeOK, Message: "Looks achievable."}
		backend := &fakeBackend{
			states: []coach.UserState{verifying, planning, ready},
			verifications: []coach.VerificationStatus{
				{Status: coach.StatusPending},
				{Status: coach.StatusCompleted, Result: result},
			},
		}
		p := newRegistry(t, backend).Provider("session", "token")
		if _, err := p.State(t.Context()); err != nil {
			t.Fatalf("State: %v", err)
		}

		p.WatchVerification()
		if !p.Verifying() {
			t.Fatalf("Verifying() = false after WatchVerification")
		}
		time.Sleep(time.Minute)
		synctest.Wait()

		status, err := p.Verification()
		if err != nil || status == nil || status.Status != coach.StatusCompleted || status.Result.Message != result.Message {
			t.Fatalf("Verification() = %+v, %v", status, err)
		}
		if p.Verifying() || p.Watching() {
			t.Errorf("loops still run: verifying %v watching %v", p.Verifying(), p.Watching())
		}
		state, _ := p.State(t.Context())
		if !state.HasSchedules() {
			t.Errorf("user state was not followed after verification: %+v", state)
		}
		if _, verifyCalls := backend.calls(); verifyCalls != 2 {
			t.Errorf("verification calls = %d, want 2", verifyCalls)
		}
	})
}

func TestProvider_WatchVerificationStopsOnError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{
			states:    []coach.UserState{verifying},
			verifyErr: &coachapi.Error{StatusCode: 500, Detail: "Verification service unavailable"},
		}
		p := newRegistry(t, backend).Provider("session", "token")
		if _, err := p.State(t.Context()); err != nil {
			t.Fatalf("State: %v", err)
		}

		p.WatchVerification()
		time.Sleep(time.Minute)
		synctest.Wait()

		if p.Verifying() {
			t.Errorf("verification loop still runs after a failed check")
		}
		if _, err := p.State(t.Context()); !errors.Is(err, coachapi.ErrBackend) {
			t.Errorf("State() err = %v, want ErrBackend", err)
		}
		if _, err := p.Verification(); !errors.Is(err, coachapi.ErrBackend) {
			t.Errorf("Verification() err = %v, want ErrBackend", err)
		}
		if _, verifyCalls := backend.calls(); verifyCalls != 1 {
			t.Errorf("verification calls = %d, want 1", verifyCalls)
		}

		if _, err := p.Refresh(t.Context()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if state, err := p.State(t.Context()); err != nil || state.VerificationStatus != coach.StatusPending {
			t.Errorf("State() after retry = %+v, %v, want the pending state", state, err)
		}
	})
}

func TestProvider_Proceed(t *testing.T) {
	backend := &fakeBackend{states: []coach.UserState{ready}}
	p := newRegistry(t, backend).Provider("session", "token")
	if err := p.Proceed(t.Context()); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if !backend.proceeded {
		t.Errorf("backend was not asked to proceed")
	}
	if p.Watching() {
		t.Errorf("Watch started although nothing is pending")
	}
}

func TestRegistry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{states: []coach.UserState{planning}}
		registry := newRegistry(t, backend)

		first := registry.Provider("a", "token-1")
		if registry.Provider("a", "token-1") != first {
			t.Errorf("same session and token returned a new provider")
		}
		if _, err := first.State(t.Context()); err != nil {
			t.Fatalf("State: %v", err)
		}
		first.Watch()

		second := registry.Provider("a", "token-2")
		if second == first {
			t.Errorf("a new token must replace the provider")
		}
		synctest.Wait()
		if first.Watching() {
			t.Errorf("replaced provider still polls")
		}

		registry.Provider("b", "token-3")
		if got := registry.Len(); got != 2 {
			t.Errorf("Len() = %d, want 2", got)
		}
		registry.Drop("a")
		registry.Drop("missing")
		if got := registry.Len(); got != 1 {
			t.Errorf("Len() after Drop = %d, want 1", got)
		}
	})
}

func TestRegistry_Sweep(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := &fakeBackend{states: []coach.UserState{planning}}
		registry := newRegistry(t, backend)
		registry.StartSweeper(time.Minute)

		abandoned := registry.Provider("abandoned", "token-1")
		if _, err := abandoned.State(t.Context()); err != nil {
			t.Fatalf("State: %v", err)
		}
		abandoned.Watch()
		active := registry.Provider("active", "token-2")

		time.Sleep(45 * time.Second)
		registry.Provider("active", "token-2")
		time.Sleep(50 * time.Second)
		synctest.Wait()

		if got := registry.Len(); got != 1 {
			t.Errorf("Len() = %d, want 1", got)
		}
		if registry.Provider("active", "token-2") != active {
			t.Errorf("recently used provider was swept")
		}
		if abandoned.Watching() {
			t.Errorf("swept provider still polls")
		}
		if registry.Provider("abandoned", "token-1") == abandoned {
			t.Errorf("swept provider was reused")
		}
	})
}
