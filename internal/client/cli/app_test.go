package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/app"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = orig })
}

func newTestApp(t *testing.T, srv *testkit.APIServer, input string) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIBaseURL = srv.URL
	cfg.StoreBackend = config.BackendMemory

	var out bytes.Buffer
	a, err := NewApp(context.Background(), cfg, strings.NewReader(input), &out, app.WithLogOutput(io.Discard))
	require.NoError(t, err)
	return a, &out
}

func TestApp_Run_LoginCommandsLogout(t *testing.T) {
	srv := testkit.NewAPIServer()
	defer srv.Close()
	stubPassword(t, testkit.Password)

	a, out := newTestApp(t, srv, strings.Join([]string{
		"a@b.c", "y",
		"status",
		"token",
		"get /api/profile",
		"logout",
		"status",
		"exit",
	}, "\n")+"\n")

	require.NoError(t, a.Run(context.Background()))

	s := out.String()
	assert.Contains(t, s, "Login successful")
	assert.Contains(t, s, "User:    a@b.c")
	assert.Contains(t, s, "Role:    manager")
	assert.Contains(t, s, "Session: long")
	assert.Contains(t, s, "Access token ready")
	assert.Contains(t, s, "200 OK")
	assert.Contains(t, s, `"subject":"user-1"`)
	assert.Contains(t, s, "Logged out.")
	assert.Contains(t, s, "Not logged in")
	assert.NotContains(t, s, srv.RefreshToken(), "tokens are never printed")

	assert.Equal(t, "/api/profile", srv.LastPath())
	assert.Equal(t, 1, srv.LogoutCalls())
}

func TestApp_Run_BadPasswordStaysLoggedOut(t *testing.T) {
	srv := testkit.NewAPIServer()
	defer srv.Close()
	stubPassword(t, "wrong")

	a, out := newTestApp(t, srv, "a@b.c\nn\nhelp\nexit\n")
	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "login unsuccessful")
	assert.Contains(t, out.String(), "Available commands: login, exit")
}

func TestApp_Get_UnrecoverableAuthorization(t *testing.T) {
	srv := testkit.NewAPIServer()
	defer srv.Close()
	stubPassword(t, testkit.Password)

	a, out := newTestApp(t, srv, "a@b.c\nn\n")
	defer a.components.Close()
	ctx := context.Background()
	require.NoError(t, a.Login(ctx))

	srv.SetAlwaysUnauthorized(true)
	err := a.Get(ctx, "/api/profile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "please log in again")
	assert.Contains(t, out.String(), "Session ended (unauthorized)")
	assert.False(t, a.isLoggedIn(ctx))
}

func TestApp_Notices(t *testing.T) {
	var out bytes.Buffer
	a := &App{out: &lockedWriter{w: &out}}

	a.warn(4*time.Minute + 59600*time.Millisecond)
	a.loggedOut(common.LogoutIdle)

	assert.Contains(t, out.String(), "logged out in 300 s")
	assert.Contains(t, out.String(), "Session ended (idle)")
}
