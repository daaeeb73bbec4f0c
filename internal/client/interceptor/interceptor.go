package interceptor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// TokenSource supplies access tokens. refresh.Coordinator implements it.
type TokenSource interface {
	ValidAccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// LogoutFunc ends the session.
type LogoutFunc func(ctx context.Context, reason common.LogoutReason) error

type Interceptor struct {
	tokens     TokenSource
	logout     LogoutFunc
	classifier *Classifier
	log        logging.Logger
	metrics    *metrics.Metrics
}

type Option func(*Interceptor)

func WithLogger(l logging.Logger) Option { return func(i *Interceptor) { i.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(i *Interceptor) { i.metrics = m } }

func New(tokens TokenSource, logout LogoutFunc, classifier *Classifier, opts ...Option) *Interceptor {
	i := &Interceptor{
		tokens:     tokens,
		logout:     logout,
		classifier: classifier,
		log:        logging.Nop(),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// fail ends the session for an unrecoverable authorization problem.
// Cancellation of the caller's own context is not such a problem.
func (i *Interceptor) fail(ctx context.Context, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}

	i.log.Warn(ctx, "ending session after authorization failure", "error", cause)
	if i.logout != nil {
		if err := i.logout(context.WithoutCancel(ctx), common.LogoutUnauthorized); err != nil {
			i.log.Error(ctx, "logout failed", "error", err)
		}
	}
	if errors.Is(cause, common.ErrAuthorizationFailed) {
		return cause
	}
	return fmt.Errorf("%w: %w", common.ErrAuthorizationFailed, cause)
}
