// Package policy maps the "remember me" choice at login onto an inactivity
// profile and hands it to the idle monitor.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	Short Kind = "short"
	Long  Kind = "long"
)

// Profile is a pair of policy constants. The warning fires WarningLead
// before the forced logout at InactivityLimit.
type Profile struct {
	InactivityLimit time.Duration
	WarningLead     time.Duration
}

var ErrInvalidProfile = errors.New("invalid session profile")

// Validate requires 0 < WarningLead < InactivityLimit so the warning always
// precedes the logout.
func (p Profile) Validate() error {
	if p.WarningLead <= 0 || p.InactivityLimit <= p.WarningLead {
		return fmt.Errorf("%w: warning lead %s must be positive and below inactivity limit %s",
			ErrInvalidProfile, p.WarningLead, p.InactivityLimit)
	}
	return nil
}

// Policy is the profile chosen for one session.
type Policy struct {
	Kind Kind
	Profile
}

// Profiles holds the two named profiles.
type Profiles struct {
	Short Profile
	Long  Profile
}

func DefaultProfiles() Profiles {
	return Profiles{
		Short: Profile{InactivityLimit: 30 * time.Minute, WarningLead: 5 * time.Minute},
		Long:  Profile{InactivityLimit: 8 * time.Hour, WarningLead: 5 * time.Minute},
	}
}

func (p Profiles) Validate() error {
	if err := p.Short.Validate(); err != nil {
		return fmt.Errorf("short: %w", err)
	}
	if err := p.Long.Validate(); err != nil {
		return fmt.Errorf("long: %w", err)
	}
	return nil
}

// For returns the policy of kind; unknown kinds fall back to Short.
func (p Profiles) For(kind Kind) Policy {
	if kind == Long {
		return Policy{Kind: Long, Profile: p.Long}
	}
	return Policy{Kind: Short, Profile: p.Short}
}

// KindStore persists the session kind marker.
type KindStore interface {
	SetSessionKind(ctx context.Context, kind string) error
	SessionKind(ctx context.Context) string
}

// Target receives the chosen policy, typically an idle monitor.
type Target interface {
	SetPolicy(p Policy)
}

type Configurator struct {
	profiles Profiles
	store    KindStore
	target   Target
}

func NewConfigurator(profiles Profiles, store KindStore, target Target) (*Configurator, error) {
	if err := profiles.Validate(); err != nil {
		return nil, err
	}
	return &Configurator{profiles: profiles, store: store, target: target}, nil
}

// Configure persists the session kind for rememberMe and pushes the matching
// profile to the target.
func (c *Configurator) Configure(ctx context.Context, rememberMe bool) (Policy, error) {
	kind := Short
	if rememberMe {
		kind = Long
	}
	p := c.profiles.For(kind)

	if err := c.store.SetSessionKind(ctx, string(kind)); err != nil {
		return Policy{}, fmt.Errorf("persist session kind: %w", err)
	}
	if c.target != nil {
		c.target.SetPolicy(p)
	}
	return p, nil
}

// Restore re-applies the persisted kind after a restart without writing it.
func (c *Configurator) Restore(ctx context.Context) Policy {
	p := c.profiles.For(Kind(c.store.SessionKind(ctx)))
	if c.target != nil {
		c.target.SetPolicy(p)
	}
	return p
}
