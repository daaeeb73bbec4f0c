// Package services contains the application services of the session client.
// This file defines the session service: login, resume after restart, the
// single logout entry point, and token access for callers outside HTTP/gRPC.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/idle"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/refresh"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

const remoteLogoutTimeout = 5 * time.Second

// SessionService is the surface the CLI and the proxy work with.
//
// Contract:
//   - Login: authenticate with email/password and establish the session.
//   - Establish: adopt a token pair issued elsewhere.
//   - Resume: continue a session persisted by a previous run.
//   - Logout: end the session for reason; safe to call any number of times.
//   - ValidAccessToken: a usable access token, refreshing if needed.
//   - Status: a snapshot for display.
//   - Close: stop background work on shutdown; the persisted session stays.
type SessionService interface {
	Login(ctx context.Context, email string, password []byte, rememberMe bool) error
	Establish(ctx context.Context, grant Grant) error
	Resume(ctx context.Context) (bool, error)
	Logout(ctx context.Context, reason common.LogoutReason) error
	ValidAccessToken(ctx context.Context) (string, error)
	Status(ctx context.Context) Status
	Close()
}

// Grant is a freshly issued session.
type Grant struct {
	AccessToken  string
	RefreshToken string
	RememberMe   bool
	Role         string
	Email        string
}

type Status struct {
	Authenticated bool
	Email         string
	Role          string
	Kind          policy.Kind
	ExpiresAt     time.Time
	Idle          idle.State
	// IdleRemaining is set while an inactivity warning is pending.
	IdleRemaining time.Duration
}

type sessionService struct {
	api        client.SessionAPI
	store      *credentials.Store
	tokens     *refresh.Coordinator
	configurer *policy.Configurator
	monitor    *idle.Monitor
	log        logging.Logger
	metrics    *metrics.Metrics
	onLogout   func(reason common.LogoutReason)

	mu       sync.Mutex
	active   bool
	bgCancel context.CancelFunc
}

type Option func(*sessionService)

func WithLogger(l logging.Logger) Option { return func(s *sessionService) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *sessionService) { s.metrics = m } }

// WithLogoutHook is called once per ended session, after local state is
// gone. The CLI uses it to return to the login prompt.
func WithLogoutHook(fn func(reason common.LogoutReason)) Option {
	return func(s *sessionService) { s.onLogout = fn }
}

// NewSessionService wires the service and registers its Logout as the idle
// monitor's logout callback.
func NewSessionService(
	api client.SessionAPI,
	store *credentials.Store,
	tokens *refresh.Coordinator,
	configurer *policy.Configurator,
	monitor *idle.Monitor,
	opts ...Option,
) SessionService {
	s := &sessionService{
		api:        api,
		store:      store,
		tokens:     tokens,
		configurer: configurer,
		monitor:    monitor,
		log:        logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	monitor.SetLogout(s.Logout)
	return s
}

func (s *sessionService) Login(ctx context.Context, email string, password []byte, rememberMe bool) error {
	res, err := s.api.Login(ctx, email, string(password))
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	return s.Establish(ctx, Grant{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		RememberMe:   rememberMe,
		Role:         res.Role,
		Email:        email,
	})
}

func (s *sessionService) Establish(ctx context.Context, g Grant) error {
	if g.AccessToken == "" || g.RefreshToken == "" {
		return common.ErrNoCredential
	}

	// a re-login replaces whatever was running
	s.stopBackground()

	if err := s.store.Set(ctx, g.AccessToken, g.RefreshToken); err != nil {
		return err
	}
	if _, err := s.configurer.Configure(ctx, g.RememberMe); err != nil {
		return err
	}
	if err := s.store.SetSessionInfo(ctx, g.Role, g.Email); err != nil {
		return fmt.Errorf("store session info: %w", err)
	}

	s.start(ctx)
	s.log.Info(ctx, "session established", "remember_me", g.RememberMe)
	return nil
}

func (s *sessionService) Resume(ctx context.Context) (bool, error) {
	if s.store.Get(ctx).RefreshToken == "" {
		return false, nil
	}

	s.configurer.Restore(ctx)
	if _, err := s.tokens.ValidAccessToken(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		_ = s.Logout(ctx, common.LogoutUnauthorized)
		return false, fmt.Errorf("resume session: %w", err)
	}

	s.start(ctx)
	s.log.Info(ctx, "session resumed")
	return true, nil
}

func (s *sessionService) start(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.active = true
	s.bgCancel = cancel
	s.mu.Unlock()

	s.monitor.Start(bgCtx)
	go s.tokens.Run(bgCtx)
	s.metrics.SessionStarted()
}

func (s *sessionService) stopBackground() {
	s.mu.Lock()
	cancel := s.bgCancel
	s.bgCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.monitor.Stop()
}

// Logout clears local state first, then stops the background tasks, then
// tells the server. The server call is best effort.
func (s *sessionService) Logout(ctx context.Context, reason common.LogoutReason) error {
	creds := s.store.Get(ctx)
	clearErr := s.store.Clear(ctx)

	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.mu.Unlock()

	s.stopBackground()

	if !wasActive && creds.IsZero() {
		return clearErr
	}

	if reason == common.LogoutUser {
		s.log.Info(ctx, "logged out", "reason", reason)
	} else {
		s.log.Warn(ctx, "session ended", "reason", reason)
	}
	s.metrics.Logout(reason)

	if creds.RefreshToken != "" {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteLogoutTimeout)
		if err := s.api.Logout(rctx, creds.RefreshToken); err != nil {
			s.log.Debug(ctx, "remote logout failed", "error", err)
		}
		cancel()
	}

	if s.onLogout != nil {
		s.onLogout(reason)
	}
	return clearErr
}

func (s *sessionService) ValidAccessToken(ctx context.Context) (string, error) {
	token, err := s.tokens.ValidAccessToken(ctx)
	if err != nil && (errors.Is(err, common.ErrRefreshFailed) || errors.Is(err, common.ErrNoCredential)) {
		_ = s.Logout(ctx, common.LogoutUnauthorized)
	}
	return token, err
}

func (s *sessionService) Close() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.stopBackground()
}

func (s *sessionService) Status(ctx context.Context) Status {
	creds := s.store.Get(ctx)
	role, email := s.store.SessionInfo(ctx)

	st := Status{
		Authenticated: !creds.IsZero(),
		Email:         email,
		Role:          role,
		Kind:          policy.Kind(s.store.SessionKind(ctx)),
		Idle:          s.monitor.State(),
		IdleRemaining: s.monitor.WarningRemaining(),
	}
	if creds.ExpiresAt > 0 {
		st.ExpiresAt = time.UnixMilli(creds.ExpiresAt)
	}
	return st
}
