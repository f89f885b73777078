// Package planstate holds the backend state of each signed-in browser session and keeps it fresh while backend
// jobs run.
//
// A [Provider] belongs to one web session. It caches the last fetched [coach.UserState], deduplicates concurrent
// fetches and runs at most one poll loop per watched job. The [Registry] creates providers on demand and tears them
// down on logout, when the backend rejects the token, or once the session has been idle for too long.
package planstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/errors"
	"github.com/myrjola/runcoach/internal/poll"
	"golang.org/x/sync/singleflight"
)

// Backend is the part of the coach API the providers use.
type Backend interface {
	UserState(ctx context.Context, token string) (coach.UserState, error)
	Proceed(ctx context.Context, token string) error
	Verification(ctx context.Context, token string) (coach.VerificationStatus, error)
}

// fetchTimeout bounds a user state fetch shared by concurrent requests.
const fetchTimeout = 30 * time.Second

// Registry owns the providers of all web sessions.
type Registry struct {
	ctx     context.Context //nolint:containedctx // parent of the poll loops, cancelled on shutdown.
	cancel  context.CancelFunc
	backend Backend
	policy  poll.Policy
	logger  *slog.Logger

	mu        sync.Mutex
	providers map[string]*Provider
}

// NewRegistry returns an empty registry. Poll loops stop when ctx is cancelled.
func NewRegistry(ctx context.Context, backend Backend, policy poll.Policy, logger *slog.Logger) *Registry {
	ctx, cancel := context.WithCancel(ctx)
	return &Registry{
		ctx:       ctx,
		cancel:    cancel,
		backend:   backend,
		policy:    policy,
		logger:    logger,
		providers: make(map[string]*Provider),
	}
}

// Provider returns the provider of the web session identified by sessionID, creating it when needed. A provider
// created for a different access token is replaced.
func (r *Registry) Provider(sessionID, accessToken string) *Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[sessionID]; ok {
		if p.token == accessToken {
			p.lastUsed = time.Now()
			return p
		}
		p.Close()
	}
	ctx, cancel := context.WithCancel(r.ctx)
	p := &Provider{
		ctx:     ctx,
		cancel:  cancel,
		backend: r.backend,
		token:   accessToken,
		policy:  r.policy,
		logger:  r.logger.With(slog.String("provider", sessionID)),
	}
	p.lastUsed = time.Now()
	r.providers[sessionID] = p
	return p
}

// Drop closes and forgets the provider of sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[sessionID]; ok {
		p.Close()
		delete(r.providers, sessionID)
	}
}

// Len returns the number of live providers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// Sweep closes and forgets the providers that nobody asked for within idle. It returns how many were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	dropped := 0
	for id, p := range r.providers {
		if now.Sub(p.lastUsed) > idle {
			p.Close()
			delete(r.providers, id)
			dropped++
		}
	}
	return dropped
}

// StartSweeper sweeps idle providers every idle/2 until the registry is closed. It releases the providers of
// sessions that expired or were abandoned without a logout.
func (r *Registry) StartSweeper(idle time.Duration) {
	go func() {
		ticker := time.NewTicker(idle / 2) //nolint:mnd // twice per idle period.
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				if dropped := r.Sweep(idle); dropped > 0 {
					r.logger.LogAttrs(r.ctx, slog.LevelDebug, "swept idle providers",
						slog.Int("dropped", dropped), slog.Int("remaining", r.Len()))
				}
			}
		}
	}()
}

// Close stops every provider and the sweeper.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.providers {
		p.Close()
		delete(r.providers, id)
	}
	r.cancel()
}

// Provider caches the backend state of one web session.
type Provider struct {
	ctx     context.Context //nolint:containedctx // lifetime of the provider's poll loops.
	cancel  context.CancelFunc
	backend Backend
	token   string
	policy  poll.Policy
	logger  *slog.Logger
	group   singleflight.Group

	// lastUsed is guarded by the registry's mutex.
	lastUsed time.Time

	mu              sync.Mutex
	state           *coach.UserState
	err             error
	fetchedAt       time.Time
	watching        bool
	verification    *coach.VerificationStatus
	verificationErr error
	verifying       bool
}

// State returns the cached user state, fetching it first when nothing is cached. A terminal poll error is returned
// until the next successful [Provider.Refresh].
func (p *Provider) State(ctx context.Context) (*coach.UserState, error) {
	p.mu.Lock()
	state, err := p.state, p.err
	p.mu.Unlock()
	if state != nil || err != nil {
		return state, err
	}
	return p.Refresh(ctx)
}

// Refresh fetches the user state from the backend. Concurrent calls share one request, which outlives any single
// caller giving up and stops only when the provider closes or fetchTimeout passes.
func (p *Provider) Refresh(ctx context.Context) (*coach.UserState, error) {
	ch := p.group.DoChan("state", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		stop := context.AfterFunc(p.ctx, cancel)
		defer stop()
		state, fetchErr := p.backend.UserState(fetchCtx, p.token)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return &state, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		return nil, err
	}
	state, _ := v.(*coach.UserState)
	p.mu.Lock()
	p.state, p.err, p.fetchedAt = state, nil, time.Now()
	p.mu.Unlock()
	return state, nil
}

// FetchedAt returns when the cached state was fetched.
func (p *Provider) FetchedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchedAt
}

// Proceed asks the backend to generate the plan despite verification concerns, then refreshes and watches the
// state.
func (p *Provider) Proceed(ctx context.Context) error {
	if err := p.backend.Proceed(ctx, p.token); err != nil {
		return err
	}
	if _, err := p.Refresh(ctx); err != nil {
		return err
	}
	p.Watch()
	return nil
}

// Watching reports whether the user state poll loop runs.
func (p *Provider) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watching
}

// Watch starts polling the user state while any backend job is pending. It does nothing when a loop already runs
// or nothing is pending.
func (p *Provider) Watch() {
	p.mu.Lock()
	if p.watching || !p.state.Pending() {
		p.mu.Unlock()
		return
	}
	p.watching = true
	p.mu.Unlock()

	go func() {
		err := poll.Run(p.ctx, p.policy, func(ctx context.Context) (bool, error) {
			state, err := p.Refresh(ctx)
			if err != nil {
				return false, err
			}
			p.logger.LogAttrs(ctx, slog.LevelDebug, "polled user state",
				slog.String("verification", string(state.VerificationStatus)),
				slog.String("macroplan", string(state.MacroplanStatus)),
				slog.String("weekly_plan", string(state.WeeklyPlanStatus)))
			return !state.Pending(), nil
		})
		p.mu.Lock()
		p.watching = false
		if err != nil && !errors.Is(err, context.Canceled) {
			p.err = err
		}
		p.mu.Unlock()
		p.logOutcome("user state", err)
	}()
}

// Verifying reports whether the verification poll loop runs.
func (p *Provider) Verifying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifying
}

// Verification returns the last verification poll result.
func (p *Provider) Verification() (*coach.VerificationStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verification, p.verificationErr
}

// WatchVerification polls the verification endpoint in the background until the job leaves pending. Once it has,
// the user state is refreshed and watched so that plan generation is followed too.
func (p *Provider) WatchVerification() {
	p.mu.Lock()
	if p.verifying {
		p.mu.Unlock()
		return
	}
	p.verifying = true
	p.verificationErr = nil
	p.mu.Unlock()

	go func() {
		err := poll.Run(p.ctx, p.policy, func(ctx context.Context) (bool, error) {
			status, err := p.backend.Verification(ctx, p.token)
			if err != nil {
				return false, err
			}
			p.mu.Lock()
			p.verification = &status
			p.mu.Unlock()
			return status.Status != coach.StatusPending, nil
		})
		p.mu.Lock()
		p.verifying = false
		if err != nil && !errors.Is(err, context.Canceled) {
			// Without the error on the state the pending view would restart the loop forever.
			p.verificationErr, p.err = err, err
		}
		p.mu.Unlock()
		p.logOutcome("verification", err)
		if err != nil {
			return
		}
		if _, err = p.Refresh(p.ctx); err == nil {
			p.Watch()
		}
	}()
}

func (p *Provider) logOutcome(job string, err error) {
	switch {
	case err == nil:
		p.logger.LogAttrs(p.ctx, slog.LevelInfo, "poll finished", slog.String("job", job))
	case errors.Is(err, context.Canceled):
		p.logger.LogAttrs(context.Background(), slog.LevelDebug, "poll cancelled", slog.String("job", job))
	default:
		p.logger.LogAttrs(p.ctx, slog.LevelWarn, "poll failed", slog.String("job", job), errors.SlogError(err))
	}
}

// Close stops the provider's poll loops.
func (p *Provider) Close() {
	p.cancel()
}
