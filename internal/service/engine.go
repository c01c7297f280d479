package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tenantdesk/workspace-shell/config"
	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	"github.com/tenantdesk/workspace-shell/internal/observability/metrics"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/store"
)

// EngineOptions groups dependencies for Engine.
type EngineOptions struct {
	Stores   store.Factory          // Required: durable and session stores
	Identity ports.IdentityProvider // Required: sign-in exchange and refresh
	API      ports.WorkspaceAPI     // Required: backend workspace API
	Bus      ports.AuthStateBus     // Optional: auth-state stream shared across instances
	Config   config.EngineConfig
	Logger   *slog.Logger // Optional: structured logger
	Metrics  statsd.Sink  // Optional: metrics sink
}

// Engine resolves which view a device lands on and applies the user-driven
// transitions between views.
type Engine struct {
	stores   store.Factory
	idp      ports.IdentityProvider
	api      ports.WorkspaceAPI
	bus      ports.AuthStateBus
	resolver *Resolver
	cfg      config.EngineConfig
	logger   *slog.Logger
	metrics  statsd.Sink

	baseLogger *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Stores.Durable == nil || opts.Stores.Session == nil {
		return nil, errors.New("durable and session stores are required")
	}
	if opts.Identity == nil {
		return nil, errors.New("IdentityProvider is required")
	}
	if opts.API == nil {
		return nil, errors.New("WorkspaceAPI is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	cfg.Sanitize()

	prov, err := NewProvisioner(ProvisionerOptions{API: opts.API, Logger: logger, Metrics: opts.Metrics})
	if err != nil {
		return nil, err
	}
	res, err := NewResolver(ResolverOptions{
		API:           opts.API,
		Provisioner:   prov,
		Logger:        logger,
		CommitTimeout: cfg.CommitTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		stores:   opts.Stores,
		idp:      opts.Identity,
		api:      opts.API,
		bus:      opts.Bus,
		resolver: res,
		cfg:      cfg,
		logger:   logger.With("component", "engine"),
		metrics:  opts.Metrics,

		baseLogger: logger,
	}, nil
}

// BootResult is a committed resolution plus the URL with handoff parameters removed.
type BootResult struct {
	workspace.Outcome
	Location    string `json:"location"`
	DisplayName string `json:"displayName,omitempty"`
}

// Boot runs the resolution for deviceID landing on rawURL. It parses and
// stores the handoff, watches authentication, and resolves once per token
// signal until one pass commits. If nothing commits before the boot timeout
// the device lands on login without a token, else on the hub.
func (e *Engine) Boot(ctx context.Context, deviceID, rawURL string) (BootResult, error) {
	start := time.Now()
	wctx := e.stores.For(deviceID)

	handoff, clean := ParseHandoff(rawURL)
	if err := ApplyHandoff(ctx, wctx, handoff); err != nil {
		return e.bootFailed(ctx, wctx, start, clean, err)
	}

	watcher, err := e.watcher(wctx)
	if err != nil {
		return e.bootFailed(ctx, wctx, start, clean, err)
	}

	bctx, cancel := context.WithTimeout(ctx, e.cfg.BootTimeout)
	defer cancel()

	signals, err := watcher.Watch(bctx)
	if err != nil {
		return e.bootFailed(ctx, wctx, start, clean, err)
	}

	b := &boot{
		engine:  e,
		wctx:    wctx,
		latch:   &workspace.Latch{},
		notify:  make(chan struct{}, 1),
		watcher: watcher,
	}
	outcome, cause := b.run(bctx, signals)

	// Stop in-flight passes and the watcher before returning.
	cancel()
	b.wg.Wait()
	for range signals {
	}

	if parent := ctx.Err(); parent != nil {
		return BootResult{}, parent
	}

	e.commit(ctx, wctx, start, outcome, cause)
	return BootResult{
		Outcome:     outcome,
		Location:    clean,
		DisplayName: watcher.Session().UserDisplayName,
	}, nil
}

// bootFailed commits a landing view when Boot cannot start resolving:
// login when no identity token can be read, else the hub.
func (e *Engine) bootFailed(
	ctx context.Context,
	wctx *store.WorkspaceContext,
	start time.Time,
	clean string,
	cause error,
) (BootResult, error) {
	if parent := ctx.Err(); parent != nil {
		return BootResult{}, parent
	}
	outcome := workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleNoSession}
	if token, err := wctx.IdentityToken(ctx); err == nil && token != "" {
		outcome = workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleFetchFailed}
	}
	e.logger.WarnContext(ctx, "boot failed, using fallback",
		"device_id", wctx.DeviceID(), "view", outcome.View, "rule", outcome.Rule, "error", cause)

	e.commit(ctx, wctx, start, outcome, cause)
	return BootResult{Outcome: outcome, Location: clean}, nil
}

// commit persists the landing view and records the resolution metric.
func (e *Engine) commit(
	ctx context.Context,
	wctx *store.WorkspaceContext,
	start time.Time,
	outcome workspace.Outcome,
	cause error,
) {
	cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CommitTimeout)
	defer ccancel()
	if err := wctx.SaveViewState(cctx, outcome); err != nil {
		e.logger.WarnContext(ctx, "persist view state failed", "device_id", wctx.DeviceID(), "error", err)
	}

	metrics.EmitResolution(e.metrics, metrics.ResolutionMetric{
		View:     string(outcome.View),
		Rule:     string(outcome.Rule),
		Duration: time.Since(start),
		Err:      cause,
	})
}

func (e *Engine) watcher(wctx *store.WorkspaceContext) (*AuthWatcher, error) {
	return NewAuthWatcher(wctx, AuthWatcherOptions{
		Identity: e.idp,
		Bus:      e.bus,
		Logger:   e.baseLogger,
		Metrics:  e.metrics,
	})
}

// boot is the state of one Boot call.
type boot struct {
	engine  *Engine
	wctx    *store.WorkspaceContext
	latch   *workspace.Latch
	notify  chan struct{}
	watcher *AuthWatcher
	wg      sync.WaitGroup

	mu    sync.Mutex
	cause error
}

func (b *boot) run(ctx context.Context, signals <-chan domainauth.AuthSignal) (workspace.Outcome, error) {
	var idle chan struct{}
	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				idle = make(chan struct{})
				go func() {
					b.wg.Wait()
					close(idle)
				}()
				continue
			}
			if o, done := b.latch.Outcome(); done {
				return o, b.lastCause()
			}
			if o, done := b.handle(ctx, sig); done {
				return o, nil
			}
		case <-b.notify:
			if o, done := b.latch.Outcome(); done {
				return o, b.lastCause()
			}
		case <-idle:
			return b.fallback(ctx, false), b.lastCause()
		case <-ctx.Done():
			return b.fallback(ctx, true), b.lastCause()
		}
	}
}

// handle reacts to one auth signal. A signal without a token supersedes any
// in-flight pass and commits login; a token starts a new pass.
func (b *boot) handle(ctx context.Context, sig domainauth.AuthSignal) (workspace.Outcome, bool) {
	if sig.Session.AuthPending {
		return workspace.Outcome{}, false
	}
	if !sig.Session.SignedIn() {
		b.latch.Reset()
		login := workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleNoSession}
		t, _ := b.latch.Begin()
		b.latch.Commit(t, login)
		b.engine.logger.InfoContext(ctx, "view resolved",
			"device_id", b.wctx.DeviceID(), "view", login.View, "rule", login.Rule, "source", sig.Source)
		return login, true
	}

	token := sig.Session.IdentityToken
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		res, err := b.engine.resolver.Resolve(ctx, b.wctx, b.latch, token)
		if err != nil {
			b.engine.logger.WarnContext(ctx, "apply resolution effects failed", "device_id", b.wctx.DeviceID(), "error", err)
		}
		if res.Committed {
			b.setCause(res.Err)
			select {
			case b.notify <- struct{}{}:
			default:
			}
		}
	}()
	return workspace.Outcome{}, false
}

// fallback commits the safe landing view when no pass committed: login
// without a token, else the hub.
func (b *boot) fallback(ctx context.Context, timedOut bool) workspace.Outcome {
	o := workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleNoSession}
	if b.watcher.Session().SignedIn() {
		o = workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleFetchFailed}
	}
	if timedOut {
		o.Rule = workspace.RuleBootTimeout
	}
	t, _ := b.latch.Begin()
	if b.latch.Commit(t, o) {
		b.engine.logger.WarnContext(ctx, "no resolution pass committed, using fallback",
			"device_id", b.wctx.DeviceID(), "view", o.View, "rule", o.Rule)
		return o
	}
	committed, _ := b.latch.Outcome()
	return committed
}

func (b *boot) setCause(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cause = err
}

func (b *boot) lastCause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cause
}

// View returns the device's current view, or loading when nothing resolved yet.
func (e *Engine) View(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	o, ok, err := e.stores.For(deviceID).ViewState(ctx)
	if err != nil {
		return workspace.Outcome{}, err
	}
	if !ok {
		return workspace.Outcome{View: workspace.ViewLoading}, nil
	}
	return o, nil
}

// State returns every persisted field for deviceID.
func (e *Engine) State(ctx context.Context, deviceID string) (map[string]string, error) {
	return e.stores.For(deviceID).Dump(ctx)
}

// ClearState deletes every persisted field for deviceID.
func (e *Engine) ClearState(ctx context.Context, deviceID string) error {
	if err := e.stores.For(deviceID).Clear(ctx); err != nil {
		return fmt.Errorf("clear device state: %w", err)
	}
	return nil
}
