// Package credentials persists the session's credential pair and the small
// amount of session metadata that accompanies it.
package credentials

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/codec"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// Credentials is the stored credential pair. ExpiresAt is epoch milliseconds
// and is 0 when the access token carried no readable expiry.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store is the single source of truth for the session. Every read goes to the
// repository; nothing is cached.
type Store struct {
	// mu orders credential writes against Clear.
	mu     sync.Mutex
	repo   metadata.Repository
	sealer *cryptox.Sealer
	log    logging.Logger
}

type Option func(*Store)

// WithSealer encrypts both tokens at rest.
func WithSealer(s *cryptox.Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

func WithLogger(l logging.Logger) Option {
	return func(st *Store) { st.log = l }
}

func NewStore(repo metadata.Repository, opts ...Option) *Store {
	s := &Store{repo: repo, log: logging.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns whatever is stored. Read and decryption failures are logged and
// reported as absent fields.
func (s *Store) Get(ctx context.Context) Credentials {
	var c Credentials
	c.AccessToken = s.readToken(ctx, common.KeyAccessToken)
	c.RefreshToken = s.readToken(ctx, common.KeyRefreshToken)

	raw := s.read(ctx, common.KeyAccessTokenExpiry)
	if raw != nil {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			s.log.Debug(ctx, "ignoring unreadable token expiry", "error", err)
		} else {
			c.ExpiresAt = ms
		}
	}
	return c
}

// Set stores access and, when refresh is non-empty, replaces the refresh
// token. The expiry is always recomputed from access; a token without a
// readable expiry is kept verbatim and its expiry key removed.
func (s *Store) Set(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(ctx, access, refresh)
}

// SetIfCurrent behaves like Set but only while the stored refresh token is
// still expectRefresh. It reports false, writing nothing, when the session
// was cleared or replaced in the meantime.
func (s *Store) SetIfCurrent(ctx context.Context, expectRefresh, access, refresh string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readToken(ctx, common.KeyRefreshToken) != expectRefresh {
		return false, nil
	}
	return true, s.set(ctx, access, refresh)
}

func (s *Store) set(ctx context.Context, access, refresh string) error {
	set := make(map[string][]byte, 3)
	var remove []string

	sealed, err := s.seal(access)
	if err != nil {
		return err
	}
	set[common.KeyAccessToken] = sealed

	if refresh != "" {
		sealed, err := s.seal(refresh)
		if err != nil {
			return err
		}
		set[common.KeyRefreshToken] = sealed
	}

	if exp, err := codec.Expiry(access); err == nil {
		set[common.KeyAccessTokenExpiry] = []byte(strconv.FormatInt(exp.UnixMilli(), 10))
	} else {
		s.log.Debug(ctx, "storing access token verbatim", "error", err)
		remove = append(remove, common.KeyAccessTokenExpiry)
	}

	if err := s.repo.Apply(ctx, set, remove); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

// Clear removes the credential pair and every session marker. The sealing
// salt is kept so a later login can reuse the same key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx)
}

// ClearIfCurrent clears only while the stored refresh token is still
// expectRefresh, so a session established in the meantime survives.
func (s *Store) ClearIfCurrent(ctx context.Context, expectRefresh string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readToken(ctx, common.KeyRefreshToken) != expectRefresh {
		return false, nil
	}
	return true, s.clear(ctx)
}

func (s *Store) clear(ctx context.Context) error {
	if err := s.repo.Apply(ctx, nil, common.SessionKeys); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *Store) SetSessionKind(ctx context.Context, kind string) error {
	return s.repo.Set(ctx, common.KeySessionKind, []byte(kind))
}

func (s *Store) SessionKind(ctx context.Context) string {
	return string(s.read(ctx, common.KeySessionKind))
}

// SetSessionInfo stores display-only metadata. Empty values are skipped.
func (s *Store) SetSessionInfo(ctx context.Context, role, email string) error {
	set := map[string][]byte{}
	if role != "" {
		set[common.KeyRole] = []byte(role)
	}
	if email != "" {
		set[common.KeyDisplayEmail] = []byte(email)
	}
	return s.repo.Apply(ctx, set, nil)
}

func (s *Store) SessionInfo(ctx context.Context) (role, email string) {
	return string(s.read(ctx, common.KeyRole)), string(s.read(ctx, common.KeyDisplayEmail))
}

func (s *Store) read(ctx context.Context, key string) []byte {
	v, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Warn(ctx, "credential store read failed", "key", key, "error", err)
		return nil
	}
	return v
}

func (s *Store) readToken(ctx context.Context, key string) string {
	v := s.read(ctx, key)
	if len(v) == 0 {
		return ""
	}
	if s.sealer == nil {
		return string(v)
	}
	plain, err := s.sealer.Open(v)
	if err != nil {
		s.log.Warn(ctx, "cannot open sealed credential", "key", key, "error", err)
		return ""
	}
	return string(plain)
}

func (s *Store) seal(token string) ([]byte, error) {
	if s.sealer == nil {
		return []byte(token), nil
	}
	out, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("seal credential: %w", err)
	}
	return out, nil
}

// LoadSealer returns a Sealer for passphrase, creating and persisting the
// salt on first use.
func LoadSealer(ctx context.Context, repo metadata.Repository, passphrase []byte) (*cryptox.Sealer, error) {
	salt, err := repo.Get(ctx, common.KeySealSalt)
	if err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		salt = cryptox.NewSalt()
		if err := repo.Set(ctx, common.KeySealSalt, salt); err != nil {
			return nil, err
		}
	}
	return cryptox.NewPassphraseSealer(passphrase, salt)
}
