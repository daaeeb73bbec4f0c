package credentials

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("k")

func mustToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := testkit.GenerateToken("u", secret, exp)
	require.NoError(t, err)
	return tok
}

func TestStore_SetGet_DerivesExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewStore(metadata.NewMemoryRepository())

	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	access := mustToken(t, exp)

	require.NoError(t, s.Set(ctx, access, "r1"))

	got := s.Get(ctx)
	assert.Equal(t, access, got.AccessToken)
	assert.Equal(t, "r1", got.RefreshToken)
	assert.Equal(t, exp.UnixMilli(), got.ExpiresAt)
}

func TestStore_Set_EmptyRefreshPreservesStored(t *testing.T) {
	ctx := context.Background()
	s := NewStore(metadata.NewMemoryRepository())

	require.NoError(t, s.Set(ctx, mustToken(t, time.Now().Add(time.Minute)), "r1"))
	rotated := mustToken(t, time.Now().Add(10*time.Minute))
	require.NoError(t, s.Set(ctx, rotated, ""))

	got := s.Get(ctx)
	assert.Equal(t, rotated, got.AccessToken)
	assert.Equal(t, "r1", got.RefreshToken)
}

func TestStore_Set_MalformedTokenStoredWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	repo := metadata.NewMemoryRepository()
	s := NewStore(repo)

	require.NoError(t, s.Set(ctx, mustToken(t, time.Now().Add(time.Minute)), "r1"))
	require.NoError(t, s.Set(ctx, "not-a-jwt", ""))

	got := s.Get(ctx)
	assert.Equal(t, "not-a-jwt", got.AccessToken)
	assert.Zero(t, got.ExpiresAt, "stale expiry of the previous token must not survive")

	v, err := repo.Get(ctx, common.KeyAccessTokenExpiry)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_Clear_RemovesSessionKeysKeepsSalt(t *testing.T) {
	ctx := context.Background()
	repo := metadata.NewMemoryRepository()
	s := NewStore(repo)

	require.NoError(t, repo.Set(ctx, common.KeySealSalt, []byte("salt")))
	require.NoError(t, s.Set(ctx, mustToken(t, time.Now().Add(time.Minute)), "r1"))
	require.NoError(t, s.SetSessionKind(ctx, "long"))
	require.NoError(t, s.SetSessionInfo(ctx, "manager", "a@b.c"))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx), "clear is idempotent")

	assert.True(t, s.Get(ctx).IsZero())
	assert.Zero(t, s.Get(ctx).ExpiresAt)
	assert.Empty(t, s.SessionKind(ctx))
	role, email := s.SessionInfo(ctx)
	assert.Empty(t, role)
	assert.Empty(t, email)

	v, err := repo.Get(ctx, common.KeySealSalt)
	require.NoError(t, err)
	assert.Equal(t, []byte("salt"), v)
}

func TestStore_SessionInfo(t *testing.T) {
	ctx := context.Background()
	s := NewStore(metadata.NewMemoryRepository())

	require.NoError(t, s.SetSessionInfo(ctx, "manager", ""))
	require.NoError(t, s.SetSessionInfo(ctx, "", "a@b.c"))

	role, email := s.SessionInfo(ctx)
	assert.Equal(t, "manager", role)
	assert.Equal(t, "a@b.c", email)
}

type brokenRepo struct{ metadata.Repository }

func (brokenRepo) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk gone")
}

func (brokenRepo) Apply(context.Context, map[string][]byte, []string) error {
	return errors.New("disk gone")
}

func TestStore_Get_NeverFails(t *testing.T) {
	s := NewStore(brokenRepo{})
	assert.True(t, s.Get(context.Background()).IsZero())
}

func TestStore_WriteErrorsWrapped(t *testing.T) {
	s := NewStore(brokenRepo{})
	ctx := context.Background()
	require.ErrorContains(t, s.Set(ctx, "a", "b"), "store credentials")
	require.ErrorContains(t, s.Clear(ctx), "clear credentials")
}

func TestStore_Get_IgnoresGarbageExpiry(t *testing.T) {
	ctx := context.Background()
	repo := metadata.NewMemoryRepository()
	s := NewStore(repo)

	require.NoError(t, repo.Set(ctx, common.KeyAccessToken, []byte("a")))
	require.NoError(t, repo.Set(ctx, common.KeyAccessTokenExpiry, []byte("soon")))

	got := s.Get(ctx)
	assert.Equal(t, "a", got.AccessToken)
	assert.Zero(t, got.ExpiresAt)
}

func TestStore_Sealed(t *testing.T) {
	ctx := context.Background()
	repo := metadata.NewMemoryRepository()

	sealer, err := LoadSealer(ctx, repo, []byte("passphrase"))
	require.NoError(t, err)
	s := NewStore(repo, WithSealer(sealer))

	access := mustToken(t, time.Now().Add(time.Minute))
	require.NoError(t, s.Set(ctx, access, "r1"))

	raw, err := repo.Get(ctx, common.KeyAccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, access, string(raw), "token must not be stored in clear")

	exp, err := repo.Get(ctx, common.KeyAccessTokenExpiry)
	require.NoError(t, err)
	_, err = strconv.ParseInt(string(exp), 10, 64)
	require.NoError(t, err, "expiry stays readable")

	got := s.Get(ctx)
	assert.Equal(t, access, got.AccessToken)
	assert.Equal(t, "r1", got.RefreshToken)

	// same passphrase after a restart reuses the persisted salt
	again, err := LoadSealer(ctx, repo, []byte("passphrase"))
	require.NoError(t, err)
	assert.Equal(t, access, NewStore(repo, WithSealer(again)).Get(ctx).AccessToken)

	// wrong passphrase reads as absent
	wrong, err := LoadSealer(ctx, repo, []byte("other"))
	require.NoError(t, err)
	assert.True(t, NewStore(repo, WithSealer(wrong)).Get(ctx).IsZero())
}

func TestLoadSealer_ReusesSalt(t *testing.T) {
	ctx := context.Background()
	repo := metadata.NewMemoryRepository()

	_, err := LoadSealer(ctx, repo, []byte("p"))
	require.NoError(t, err)
	salt, err := repo.Get(ctx, common.KeySealSalt)
	require.NoError(t, err)
	require.Len(t, salt, cryptox.SaltSize)

	_, err = LoadSealer(ctx, repo, []byte("p"))
	require.NoError(t, err)
	salt2, _ := repo.Get(ctx, common.KeySealSalt)
	assert.Equal(t, salt, salt2)
}

func TestStore_SetIfCurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(metadata.NewMemoryRepository())

	require.NoError(t, s.Set(ctx, "a1", "r1"))

	ok, err := s.SetIfCurrent(ctx, "r1", "a2", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a2", s.Get(ctx).AccessToken)

	require.NoError(t, s.Clear(ctx))
	ok, err = s.SetIfCurrent(ctx, "r1", "a3", "")
	require.NoError(t, err)
	assert.False(t, ok, "a cleared session must not be resurrected")
	assert.True(t, s.Get(ctx).IsZero())
}

func TestStore_ClearIfCurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(metadata.NewMemoryRepository())

	require.NoError(t, s.Set(ctx, "a2", "r2"))
	ok, err := s.ClearIfCurrent(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok, "a newer session is left alone")
	assert.Equal(t, "r2", s.Get(ctx).RefreshToken)

	ok, err = s.ClearIfCurrent(ctx, "r2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Get(ctx).IsZero())
}
