// Package refresh keeps the stored access token valid. At most one refresh
// round-trip is in flight at any time; every caller that needs a refresh
// while one is running joins it and observes the same outcome.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/codec"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBuffer             = time.Minute
	DefaultBackgroundInterval = time.Minute
	DefaultBackgroundBuffer   = 2 * time.Minute

	flightKey = "refresh"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*client.RefreshResult, error)
}

type Coordinator struct {
	store   *credentials.Store
	api     Refresher
	clock   timex.Clock
	log     logging.Logger
	metrics *metrics.Metrics

	buffer     time.Duration
	bgInterval time.Duration
	bgBuffer   time.Duration
	onFailure  func(ctx context.Context, err error)

	group singleflight.Group
	// joined, when set, runs once a caller is attached to the flight.
	joined func()
}

type Option func(*Coordinator)

func WithClock(c timex.Clock) Option { return func(co *Coordinator) { co.clock = c } }

func WithLogger(l logging.Logger) Option { return func(co *Coordinator) { co.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(co *Coordinator) { co.metrics = m } }

// WithBuffer sets the early-refresh margin used by ValidAccessToken.
func WithBuffer(d time.Duration) Option { return func(co *Coordinator) { co.buffer = d } }

// WithBackground sets the period and margin of the proactive check in Run.
func WithBackground(interval, buffer time.Duration) Option {
	return func(co *Coordinator) {
		co.bgInterval = interval
		co.bgBuffer = buffer
	}
}

// WithFailureHook is called by Run when a proactive refresh fails and the
// session is therefore over.
func WithFailureHook(fn func(ctx context.Context, err error)) Option {
	return func(co *Coordinator) { co.onFailure = fn }
}

func New(store *credentials.Store, api Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		api:        api,
		clock:      timex.SystemClock{},
		log:        logging.Nop(),
		buffer:     DefaultBuffer,
		bgInterval: DefaultBackgroundInterval,
		bgBuffer:   DefaultBackgroundBuffer,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsExpiringSoon reports whether token is missing, has no readable expiry, or
// expires within buffer.
func (c *Coordinator) IsExpiringSoon(token string, buffer time.Duration) bool {
	if token == "" {
		return true
	}
	claims, ok := codec.Decode(token)
	if !ok {
		return true
	}
	return !c.clock.Now().Before(claims.ExpiresAt().Add(-buffer))
}

// ValidAccessToken returns the stored access token when it is not expiring
// soon, and otherwise refreshes.
func (c *Coordinator) ValidAccessToken(ctx context.Context) (string, error) {
	creds := c.store.Get(ctx)
	if !c.IsExpiringSoon(creds.AccessToken, c.buffer) {
		return creds.AccessToken, nil
	}
	return c.Refresh(ctx)
}

// Refresh obtains a new access token. Concurrent callers share one
// round-trip. A caller whose ctx ends stops waiting, but the shared refresh
// keeps running for the others.
//
// Errors: common.ErrNoCredential when there is no refresh token,
// common.ErrRefreshFailed (wrapping the cause) when the round-trip fails,
// and common.ErrSessionEnded when the session was cleared meanwhile. After
// any failure nothing of the old session remains in the store.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		return c.refresh(detached)
	})
	if c.joined != nil {
		c.joined()
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	creds := c.store.Get(ctx)
	if creds.RefreshToken == "" {
		if !creds.IsZero() {
			c.clear(ctx)
		}
		return "", common.ErrNoCredential
	}

	start := time.Now()
	res, err := c.api.Refresh(ctx, creds.RefreshToken)
	c.metrics.ObserveRefresh(err, time.Since(start).Seconds())
	if err != nil {
		c.log.Info(ctx, "token refresh failed", "error", err)
		if _, cerr := c.store.ClearIfCurrent(ctx, creds.RefreshToken); cerr != nil {
			c.log.Error(ctx, "failed to clear credentials", "error", cerr)
		}
		return "", fmt.Errorf("%w: %w", common.ErrRefreshFailed, err)
	}

	ok, err := c.store.SetIfCurrent(ctx, creds.RefreshToken, res.AccessToken, res.RefreshToken)
	if err != nil {
		c.clear(ctx)
		return "", fmt.Errorf("%w: %w", common.ErrRefreshFailed, err)
	}
	if !ok {
		c.log.Debug(ctx, "discarding refreshed token for an ended session")
		return "", common.ErrSessionEnded
	}

	c.log.Debug(ctx, "access token refreshed")
	return res.AccessToken, nil
}

func (c *Coordinator) clear(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Error(ctx, "failed to clear credentials", "error", err)
	}
}

// Run refreshes ahead of expiry until ctx is done. A tick with no stored
// session does nothing.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.bgInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

func (c *Coordinator) check(ctx context.Context) {
	creds := c.store.Get(ctx)
	if creds.IsZero() || !c.IsExpiringSoon(creds.AccessToken, c.bgBuffer) {
		return
	}

	_, err := c.Refresh(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, common.ErrSessionEnded) {
		return
	}
	c.log.Info(ctx, "background refresh failed", "error", err)
	if c.onFailure != nil {
		c.onFailure(ctx, err)
	}
}
