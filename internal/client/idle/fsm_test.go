package idle

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProfile = policy.Profile{InactivityLimit: 1000 * time.Millisecond, WarningLead: 400 * time.Millisecond}

// step drives m in 50ms increments up to horizon and records when each
// transition fired.
func step(m *Machine, start time.Time, horizon time.Duration, activityAt time.Duration) (warnAt, logoutAt time.Duration) {
	warnAt, logoutAt = -1, -1
	for t := time.Duration(0); t <= horizon; t += 50 * time.Millisecond {
		now := start.Add(t)
		if activityAt > 0 && t == activityAt {
			m.Activity(now)
		}
		switch tr, _ := m.Evaluate(now); tr {
		case Warn:
			if warnAt < 0 {
				warnAt = t
			}
		case Logout:
			if logoutAt < 0 {
				logoutAt = t
			}
		}
	}
	return warnAt, logoutAt
}

func TestMachine_WarningPrecedesLogout(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := NewMachine(testProfile, start)

	warnAt, logoutAt := step(m, start, 2*time.Second, 0)

	require.GreaterOrEqual(t, warnAt, 600*time.Millisecond)
	require.GreaterOrEqual(t, logoutAt, 1000*time.Millisecond)
	assert.Less(t, warnAt, logoutAt)
	assert.Equal(t, LoggedOut, m.State())
}

func TestMachine_ActivityResetsIdleClock(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := NewMachine(testProfile, start)

	warnAt, logoutAt := step(m, start, 1050*time.Millisecond, 500*time.Millisecond)

	assert.Equal(t, time.Duration(-1), warnAt, "no warning at the original 600ms mark")
	assert.Equal(t, time.Duration(-1), logoutAt, "no logout at the original 1000ms mark")
	assert.Equal(t, Active, m.State())

	tr, remaining := m.Evaluate(start.Add(1100 * time.Millisecond))
	assert.Equal(t, Warn, tr, "new episode warns at 500+600ms")
	assert.Equal(t, 400*time.Millisecond, remaining)
	assert.Equal(t, WarningIssued, m.State())
}

func TestMachine_WarningOncePerEpisode(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewMachine(testProfile, start)

	tr, remaining := m.Evaluate(start.Add(700 * time.Millisecond))
	assert.Equal(t, Warn, tr)
	assert.Equal(t, 300*time.Millisecond, remaining)

	tr, _ = m.Evaluate(start.Add(800 * time.Millisecond))
	assert.Equal(t, None, tr)

	// activity after a warning clears it; the next episode warns again
	require.True(t, m.Activity(start.Add(900*time.Millisecond)))
	assert.Equal(t, Active, m.State())
	tr, _ = m.Evaluate(start.Add(1500 * time.Millisecond))
	assert.Equal(t, Warn, tr)
}

func TestMachine_LoggedOutIsTerminal(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewMachine(testProfile, start)

	tr, _ := m.Evaluate(start.Add(time.Second))
	require.Equal(t, Logout, tr)

	assert.False(t, m.Activity(start.Add(2*time.Second)))
	tr, _ = m.Evaluate(start.Add(3 * time.Second))
	assert.Equal(t, None, tr)
	assert.Equal(t, LoggedOut, m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "warning-issued", WarningIssued.String())
	assert.Equal(t, "logged-out", LoggedOut.String())
	assert.Equal(t, "unknown", State(42).String())
}
