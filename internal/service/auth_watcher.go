package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/observability/metrics"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/store"
	"golang.org/x/sync/errgroup"
)

// AuthWatcherOptions groups dependencies for AuthWatcher.
type AuthWatcherOptions struct {
	Identity ports.IdentityProvider // Required: exchanges and refreshes credentials
	Bus      ports.AuthStateBus     // Optional: auth-state stream for the device
	Logger   *slog.Logger           // Optional: structured logger
	Metrics  statsd.Sink            // Optional: metrics sink
}

// AuthWatcher owns the signed-in state of one device. It exchanges a pending
// one-time sign-in credential, follows the auth-state stream, and persists
// whatever identity token results.
type AuthWatcher struct {
	wctx    *store.WorkspaceContext
	idp     ports.IdentityProvider
	bus     ports.AuthStateBus
	logger  *slog.Logger
	metrics statsd.Sink

	mu         sync.Mutex
	token      string
	name       string
	exchanging bool // sign-in exchange in flight
	settling   bool // first forced refresh in flight
}

// NewAuthWatcher constructs a watcher bound to wctx's device.
func NewAuthWatcher(wctx *store.WorkspaceContext, opts AuthWatcherOptions) (*AuthWatcher, error) {
	if wctx == nil {
		return nil, errors.New("WorkspaceContext is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("IdentityProvider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthWatcher{
		wctx:    wctx,
		idp:     opts.Identity,
		bus:     opts.Bus,
		logger:  logger.With("component", "auth_watcher", "device_id", wctx.DeviceID()),
		metrics: opts.Metrics,
	}, nil
}

// Session returns the current session snapshot.
func (w *AuthWatcher) Session() domainauth.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionLocked()
}

func (w *AuthWatcher) sessionLocked() domainauth.Session {
	return domainauth.Session{
		IdentityToken:   w.token,
		UserDisplayName: w.name,
		AuthPending:     w.exchanging || w.settling,
	}
}

// update applies fn under the lock and returns the resulting session.
func (w *AuthWatcher) update(fn func()) domainauth.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn()
	return w.sessionLocked()
}

// Watch starts the exchange and subscription tasks and returns the stream of
// session changes. The first signal reflects persisted state and carries
// AuthPending while a sign-in exchange or the first forced refresh is in
// flight. The channel is closed once both tasks finish or ctx is done.
func (w *AuthWatcher) Watch(ctx context.Context) (<-chan domainauth.AuthSignal, error) {
	snap, err := w.wctx.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read persisted identity: %w", err)
	}

	initialState := persistedState(snap)
	initial := w.update(func() {
		w.token = snap.IdentityToken
		w.name = snap.DisplayName
		w.exchanging = snap.SignInToken != ""
		w.settling = initialState.User != nil && initialState.User.RefreshToken != ""
	})

	var updates <-chan domainauth.AuthState
	if w.bus != nil {
		updates, err = w.bus.Subscribe(ctx, w.wctx.DeviceID())
		if err != nil {
			w.logger.WarnContext(ctx, "auth-state subscription unavailable", "error", err)
			updates = nil
		}
	}

	out := make(chan domainauth.AuthSignal, 4)
	out <- domainauth.AuthSignal{Session: initial, Source: domainauth.SourceInitial}

	g, gctx := errgroup.WithContext(ctx)
	if snap.SignInToken != "" {
		g.Go(func() error { return w.exchange(gctx, snap.SignInToken, out) })
	}
	g.Go(func() error { return w.follow(gctx, initialState, updates, out) })

	go func() {
		if err := g.Wait(); err != nil && !isContextCancellation(err) {
			w.logger.ErrorContext(ctx, "auth watcher stopped", "error", err)
		}
		close(out)
	}()
	return out, nil
}

// persistedState synthesizes the provider's first callback from storage.
func persistedState(snap store.Snapshot) domainauth.AuthState {
	if snap.IdentityToken == "" && snap.RefreshToken == "" {
		return domainauth.AuthState{}
	}
	return domainauth.AuthState{User: &domainauth.StreamUser{
		RefreshToken: snap.RefreshToken,
		DisplayName:  snap.DisplayName,
	}}
}

func (w *AuthWatcher) emit(
	ctx context.Context,
	out chan<- domainauth.AuthSignal,
	s domainauth.Session,
	src domainauth.SignalSource,
) error {
	select {
	case out <- domainauth.AuthSignal{Session: s, Source: src}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exchange trades the one-time sign-in credential. The credential is deleted
// after the attempt whatever the outcome. On failure the device falls back to
// an already persisted token, else to no session.
func (w *AuthWatcher) exchange(ctx context.Context, signInToken string, out chan<- domainauth.AuthSignal) error {
	creds, exErr := w.idp.ExchangeSignInToken(ctx, signInToken)
	if err := w.wctx.ClearSignInToken(ctx); err != nil {
		return fmt.Errorf("clear sign-in token: %w", err)
	}

	if exErr == nil {
		name := displayName(creds)
		if err := w.wctx.SaveIdentity(ctx, creds.IDToken, creds.RefreshToken, name); err != nil {
			return fmt.Errorf("persist exchanged identity: %w", err)
		}
		metrics.EmitExchange(w.metrics, metrics.ResultSuccess, nil)
		w.logger.InfoContext(ctx, "sign-in token exchanged", "user_id", creds.Identity.UserID)
		s := w.update(func() {
			w.token = creds.IDToken
			w.name = name
			w.exchanging = false
		})
		return w.emit(ctx, out, s, domainauth.SourceExchange)
	}
	if isContextCancellation(exErr) {
		return exErr
	}

	persisted, err := w.wctx.IdentityToken(ctx)
	if err != nil {
		return fmt.Errorf("read persisted identity: %w", err)
	}
	if persisted != "" {
		metrics.EmitExchange(w.metrics, metrics.ResultRecovered, exErr)
		w.logger.WarnContext(ctx, "sign-in exchange failed, keeping existing session", "error", exErr)
	} else {
		metrics.EmitExchange(w.metrics, metrics.ResultError, exErr)
		w.logger.WarnContext(ctx, "sign-in exchange failed, no session", "error", exErr)
	}
	s := w.update(func() {
		w.token = persisted
		w.exchanging = false
	})
	return w.emit(ctx, out, s, domainauth.SourceExchange)
}

// follow handles the synthesized initial state and then each stream update.
func (w *AuthWatcher) follow(
	ctx context.Context,
	initial domainauth.AuthState,
	updates <-chan domainauth.AuthState,
	out chan<- domainauth.AuthSignal,
) error {
	if initial.User != nil && initial.User.RefreshToken != "" {
		if err := w.handleUser(ctx, *initial.User, out); err != nil {
			return err
		}
	}
	if updates == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			if err := w.handleState(ctx, st, out); err != nil {
				return err
			}
		}
	}
}

func (w *AuthWatcher) handleState(ctx context.Context, st domainauth.AuthState, out chan<- domainauth.AuthSignal) error {
	if st.User != nil {
		return w.handleUser(ctx, *st.User, out)
	}
	if err := w.wctx.ClearIdentity(ctx); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	w.logger.InfoContext(ctx, "auth stream reported sign-out")
	s := w.update(func() {
		w.token = ""
		w.name = ""
	})
	return w.emit(ctx, out, s, domainauth.SourceSubscription)
}

// handleUser force-refreshes the identity token for a present user. Without
// a refresh token, or when the refresh fails, the persisted token stands.
func (w *AuthWatcher) handleUser(ctx context.Context, u domainauth.StreamUser, out chan<- domainauth.AuthSignal) error {
	if u.RefreshToken != "" {
		creds, err := w.idp.Refresh(ctx, u.RefreshToken)
		switch {
		case err == nil:
			name := firstNonBlank(displayName(creds), u.DisplayName)
			if saveErr := w.wctx.SaveIdentity(ctx, creds.IDToken, creds.RefreshToken, name); saveErr != nil {
				return fmt.Errorf("persist refreshed identity: %w", saveErr)
			}
			s := w.update(func() {
				w.token = creds.IDToken
				w.name = name
				w.settling = false
			})
			return w.emit(ctx, out, s, domainauth.SourceSubscription)
		case isContextCancellation(err):
			return err
		default:
			w.logger.WarnContext(ctx, "token refresh failed, using persisted token",
				"error", err, "auth_failure", apperrors.IsAuthFailure(err))
		}
	}

	persisted, err := w.wctx.IdentityToken(ctx)
	if err != nil {
		return fmt.Errorf("read persisted identity: %w", err)
	}
	s := w.update(func() {
		w.token = persisted
		w.settling = false
		if u.DisplayName != "" {
			w.name = u.DisplayName
		}
	})
	return w.emit(ctx, out, s, domainauth.SourceSubscription)
}

// SignedIn persists credentials obtained outside the watcher (interactive
// login) and announces them on the bus so live resolutions for the device pick them up.
func (w *AuthWatcher) SignedIn(ctx context.Context, creds domainauth.Credentials) error {
	name := displayName(creds)
	if err := w.wctx.SaveIdentity(ctx, creds.IDToken, creds.RefreshToken, name); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	w.update(func() {
		w.token = creds.IDToken
		w.name = name
	})
	w.publish(ctx, domainauth.AuthState{User: &domainauth.StreamUser{
		RefreshToken: creds.RefreshToken,
		DisplayName:  name,
	}})
	return nil
}

// SignOut clears the persisted identity and announces the sign-out.
func (w *AuthWatcher) SignOut(ctx context.Context) error {
	if err := w.wctx.ClearIdentity(ctx); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	if err := w.wctx.ClearSignInToken(ctx); err != nil {
		return fmt.Errorf("clear sign-in token: %w", err)
	}
	w.update(func() {
		w.token = ""
		w.name = ""
		w.exchanging = false
		w.settling = false
	})
	w.publish(ctx, domainauth.AuthState{})
	return nil
}

func (w *AuthWatcher) publish(ctx context.Context, st domainauth.AuthState) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(ctx, w.wctx.DeviceID(), st); err != nil {
		w.logger.WarnContext(ctx, "publish auth state failed", "error", err)
	}
}

func displayName(creds domainauth.Credentials) string {
	return firstNonBlank(creds.Identity.DisplayName, domainauth.DisplayNameFromToken(creds.IDToken))
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
