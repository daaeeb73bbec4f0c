// Package app wires the session components for one process: the credential
// store backend, the refresh coordinator, the idle monitor, the session
// service and the interceptor factory every outbound client is built from.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/idle"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/interceptor"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/refresh"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/services"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/filex"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// App holds the wired components. Build one per process and Close it on
// shutdown.
type App struct {
	Config   *config.Config
	Logger   logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store       *credentials.Store
	Tokens      *refresh.Coordinator
	Feed        *idle.Feed
	Monitor     *idle.Monitor
	Session     services.SessionService
	Interceptor *interceptor.Interceptor
	Factory     *interceptor.Factory

	closers []func() error
}

type options struct {
	logOutput io.Writer
	repo      metadata.Repository
	onWarn    idle.WarnFunc
	onLogout  func(reason common.LogoutReason)
	base      http.RoundTripper
}

type Option func(*options)

// WithLogOutput redirects the JSON log stream (stderr by default).
func WithLogOutput(w io.Writer) Option { return func(o *options) { o.logOutput = w } }

// WithRepository bypasses the configured store backend.
func WithRepository(r metadata.Repository) Option { return func(o *options) { o.repo = r } }

// WithWarning is called when an idle warning is due.
func WithWarning(fn idle.WarnFunc) Option { return func(o *options) { o.onWarn = fn } }

// WithLogoutHook is called once per ended session.
func WithLogoutHook(fn func(reason common.LogoutReason)) Option {
	return func(o *options) { o.onLogout = fn }
}

// WithBaseTransport sets the transport the authenticated round-tripper wraps.
func WithBaseTransport(rt http.RoundTripper) Option { return func(o *options) { o.base = rt } }

func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}
	a.Logger = logging.New(cfg.LogLevel, o.logOutput).With("instance_id", uuid.NewString())

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	repo := o.repo
	if repo == nil {
		var err error
		if repo, err = a.openRepository(ctx); err != nil {
			return nil, err
		}
	}

	storeOpts := []credentials.Option{credentials.WithLogger(a.Logger)}
	if cfg.SealPassphrase != "" {
		sealer, err := credentials.LoadSealer(ctx, repo, []byte(cfg.SealPassphrase))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		storeOpts = append(storeOpts, credentials.WithSealer(sealer))
	}
	a.Store = credentials.NewStore(repo, storeOpts...)

	api := client.NewHTTPClient(cfg.APIBaseURL, cfg.HTTPTimeout)

	// the coordinator's failure hook needs the service built below
	var svc services.SessionService
	a.Tokens = refresh.New(a.Store, api,
		refresh.WithLogger(a.Logger),
		refresh.WithMetrics(a.Metrics),
		refresh.WithBuffer(cfg.RefreshBuffer),
		refresh.WithBackground(cfg.BackgroundInterval, cfg.BackgroundBuffer),
		refresh.WithFailureHook(func(ctx context.Context, _ error) {
			_ = svc.Logout(ctx, common.LogoutUnauthorized)
		}),
	)

	a.Feed = idle.NewFeed()
	profiles := cfg.Profiles()
	a.Monitor = idle.NewMonitor(profiles.Short,
		idle.WithPollInterval(cfg.IdlePoll),
		idle.WithSources(a.Feed),
		idle.WithLogger(a.Logger),
		idle.WithMetrics(a.Metrics),
		idle.WithWarning(o.onWarn),
	)

	configurator, err := policy.NewConfigurator(profiles, a.Store, a.Monitor)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	svc = services.NewSessionService(api, a.Store, a.Tokens, configurator, a.Monitor,
		services.WithLogger(a.Logger),
		services.WithMetrics(a.Metrics),
		services.WithLogoutHook(o.onLogout),
	)
	a.Session = svc

	classifier, err := interceptor.NewClassifier(cfg.Origin(), cfg.APIBaseURL)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Interceptor = interceptor.New(a.Tokens, svc.Logout, classifier,
		interceptor.WithLogger(a.Logger),
		interceptor.WithMetrics(a.Metrics),
	)

	factoryOpts := []interceptor.FactoryOption{interceptor.WithTimeout(cfg.HTTPTimeout)}
	if o.base != nil {
		factoryOpts = append(factoryOpts, interceptor.WithBaseTransport(o.base))
	}
	a.Factory = interceptor.NewFactory(a.Interceptor, factoryOpts...)

	return a, nil
}

func (a *App) openRepository(ctx context.Context) (metadata.Repository, error) {
	cfg := a.Config
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return metadata.NewMemoryRepository(), nil

	case config.BackendSQLite:
		if _, err := filex.EnsureParentDir(cfg.StoreDSN); err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		db, err := client.InitDatabase(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return metadata.NewSQLiteRepository(db), nil

	case config.BackendPostgres:
		db, err := client.OpenPostgres(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return metadata.NewPostgresRepository(db), nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		return metadata.NewRedisRepository(rdb, cfg.RedisKey), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// Close stops the session's background work and releases the store. The
// persisted session survives for the next run.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
