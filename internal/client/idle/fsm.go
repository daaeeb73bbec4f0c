// Package idle ends a session after a period without user activity.
//
// Machine is the pure state machine; Monitor drives it from a poll ticker
// and from activity sources. Transitions are evaluated only on poll, so the
// actual firing lags by at most one poll interval.
package idle

import (
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
)

type State int

const (
	Active State = iota
	WarningIssued
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case WarningIssued:
		return "warning-issued"
	case LoggedOut:
		return "logged-out"
	default:
		return "unknown"
	}
}

type Transition int

const (
	None Transition = iota
	Warn
	Logout
)

// Machine tracks one idle episode at a time. It is not safe for concurrent
// use; Monitor serializes access.
type Machine struct {
	profile      policy.Profile
	lastActivity time.Time
	state        State
}

func NewMachine(p policy.Profile, now time.Time) *Machine {
	return &Machine{profile: p, lastActivity: now, state: Active}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) LastActivity() time.Time { return m.lastActivity }

func (m *Machine) SetProfile(p policy.Profile) { m.profile = p }

// Remaining is the time left before the forced logout, never negative.
func (m *Machine) Remaining(now time.Time) time.Duration {
	if m.state == LoggedOut {
		return 0
	}
	return max(m.profile.InactivityLimit-now.Sub(m.lastActivity), 0)
}

// Activity starts a new idle episode. It reports false once logged out.
func (m *Machine) Activity(now time.Time) bool {
	if m.state == LoggedOut {
		return false
	}
	m.lastActivity = now
	m.state = Active
	return true
}

// Evaluate applies at most one transition for now. For Warn it also returns
// the time left before the forced logout.
func (m *Machine) Evaluate(now time.Time) (Transition, time.Duration) {
	if m.state == LoggedOut {
		return None, 0
	}

	idle := now.Sub(m.lastActivity)
	if idle >= m.profile.InactivityLimit {
		m.state = LoggedOut
		return Logout, 0
	}
	if m.state == Active && idle >= m.profile.InactivityLimit-m.profile.WarningLead {
		m.state = WarningIssued
		return Warn, m.profile.InactivityLimit - idle
	}
	return None, 0
}
