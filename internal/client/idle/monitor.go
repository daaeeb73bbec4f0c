package idle

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/google/uuid"
)

const DefaultPollInterval = 30 * time.Second

// WarnFunc is told how long is left before the forced logout.
type WarnFunc func(remaining time.Duration)

// LogoutFunc ends the session.
type LogoutFunc func(ctx context.Context, reason common.LogoutReason) error

type Monitor struct {
	clock   timex.Clock
	poll    time.Duration
	sources []ActivitySource
	log     logging.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	profile  policy.Profile
	machine  *Machine
	running  bool
	id       string
	unsubs   []func()
	stop     chan struct{}
	done     chan struct{}
	onWarn   WarnFunc
	onLogout LogoutFunc
}

type Option func(*Monitor)

func WithClock(c timex.Clock) Option { return func(m *Monitor) { m.clock = c } }

func WithPollInterval(d time.Duration) Option { return func(m *Monitor) { m.poll = d } }

// WithSources sets the activity sources subscribed to while monitoring.
func WithSources(src ...ActivitySource) Option {
	return func(m *Monitor) { m.sources = append(m.sources, src...) }
}

func WithLogger(l logging.Logger) Option { return func(m *Monitor) { m.log = l } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Monitor) { m.metrics = mt } }

func WithWarning(fn WarnFunc) Option { return func(m *Monitor) { m.onWarn = fn } }

func WithLogout(fn LogoutFunc) Option { return func(m *Monitor) { m.onLogout = fn } }

func NewMonitor(profile policy.Profile, opts ...Option) *Monitor {
	m := &Monitor{
		clock:   timex.SystemClock{},
		poll:    DefaultPollInterval,
		log:     logging.Nop(),
		profile: profile,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetPolicy replaces the profile. A running episode picks it up at the next
// check.
func (m *Monitor) SetPolicy(p policy.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = p.Profile
	if m.machine != nil {
		m.machine.SetProfile(p.Profile)
	}
}

// SetLogout replaces the logout callback.
func (m *Monitor) SetLogout(fn LogoutFunc) {
	m.mu.Lock()
	m.onLogout = fn
	m.mu.Unlock()
}

// Start begins a new monitoring episode. It is a no-op while running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.machine = NewMachine(m.profile, m.clock.Now())
	m.running = true
	m.id = uuid.NewString()
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	for _, s := range m.sources {
		m.unsubs = append(m.unsubs, s.Subscribe(m.RecordActivity))
	}
	stop, done, id := m.stop, m.done, m.id
	m.mu.Unlock()

	m.log.Debug(ctx, "idle monitoring started", "monitor_id", id)
	go m.run(ctx, stop, done)
}

// Stop removes every activity listener and cancels the poll. It waits for the
// poll goroutine to exit, so it must not be called from a WarnFunc.
func (m *Monitor) Stop() {
	done, ok := m.detach()
	if ok {
		<-done
	}
}

// detach tears down the running episode. It reports false when nothing was
// running.
func (m *Monitor) detach() (chan struct{}, bool) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil, false
	}
	m.running = false
	close(m.stop)
	unsubs := m.unsubs
	m.unsubs = nil
	done := m.done
	m.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	return done, true
}

func (m *Monitor) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			m.detach()
			return
		case <-ticker.C:
			if m.Check(ctx) == LoggedOut {
				return
			}
		}
	}
}

// RecordActivity resets the idle clock of a running episode.
func (m *Monitor) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.machine == nil {
		return
	}
	m.machine.Activity(m.clock.Now())
}

// Check evaluates the machine once and fires the resulting callback.
func (m *Monitor) Check(ctx context.Context) State {
	m.mu.Lock()
	if !m.running || m.machine == nil {
		m.mu.Unlock()
		return LoggedOut
	}
	tr, remaining := m.machine.Evaluate(m.clock.Now())
	state := m.machine.State()
	onWarn, onLogout, id := m.onWarn, m.onLogout, m.id
	m.mu.Unlock()

	switch tr {
	case Warn:
		m.metrics.IdleWarning()
		m.log.Info(ctx, "inactivity warning", "monitor_id", id, "remaining", remaining)
		if onWarn != nil {
			onWarn(remaining)
		}
	case Logout:
		m.log.Warn(ctx, "logging out after inactivity", "monitor_id", id)
		m.detach()
		if onLogout != nil {
			if err := onLogout(context.WithoutCancel(ctx), common.LogoutIdle); err != nil {
				m.log.Error(ctx, "idle logout failed", "error", err)
			}
		}
	}
	return state
}

// State reports the current state; LoggedOut when not monitoring.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.machine == nil {
		return LoggedOut
	}
	return m.machine.State()
}

// WarningRemaining reports the time left before the forced logout once the
// warning of the current episode has been issued, and 0 otherwise.
func (m *Monitor) WarningRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.machine == nil || m.machine.State() != WarningIssued {
		return 0
	}
	return m.machine.Remaining(m.clock.Now())
}

// Running reports whether an episode is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
