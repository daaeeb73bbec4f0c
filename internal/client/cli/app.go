package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/app"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/idle"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/services"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

type App struct {
	components *app.App
	session    services.SessionService
	activity   *idle.Feed
	http       *http.Client
	apiBase    string
	reader     *bufio.Reader
	out        io.Writer
}

// lockedWriter serializes REPL output with notices from background
// goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// NewApp builds the session components for cfg. Extra options are passed to
// app.Build.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, opts ...app.Option) (*App, error) {
	a := &App{
		apiBase: strings.TrimRight(cfg.APIBaseURL, "/"),
		reader:  bufio.NewReader(in),
		out:     &lockedWriter{w: out},
	}

	opts = append(opts, app.WithWarning(a.warn), app.WithLogoutHook(a.loggedOut))
	components, err := app.Build(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	a.components = components
	a.session = components.Session
	a.activity = components.Feed
	a.http = components.Factory.NewHTTPClient()
	return a, nil
}

// Run resumes the stored session or asks for credentials, then serves the
// REPL until the user leaves.
func (a *App) Run(ctx context.Context) error {
	defer a.components.Close()

	fmt.Fprintln(a.out, "Welcome to sessionkeeper CLI (type 'help' for commands)")

	ok, err := a.session.Resume(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(a.out, "Stored session could not be resumed: %v\n", err)
		a.report(a.Login(ctx))
	case ok:
		st := a.session.Status(ctx)
		fmt.Fprintf(a.out, "Resumed session for %s\n", st.Email)
	default:
		a.report(a.Login(ctx))
	}

	runREPL(ctx, a, func() string { return a.getStatus(ctx) }, a.reader, a.out)
	return nil
}

func (a *App) report(err error) {
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
	}
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.session.Status(ctx).Authenticated
}

// Touch reports user activity to the idle monitor.
func (a *App) Touch() {
	a.activity.Publish()
}

func (a *App) getStatus(ctx context.Context) string {
	st := a.session.Status(ctx)
	if !st.Authenticated {
		return ""
	}
	return fmt.Sprintf("(%s %s)", st.Email, st.Kind)
}

func (a *App) warn(remaining time.Duration) {
	fmt.Fprintf(a.out, "\nInactivity: you will be logged out in %d s. Enter any command to stay signed in.\n",
		int(remaining.Round(time.Second).Seconds()))
}

func (a *App) loggedOut(reason common.LogoutReason) {
	if reason == common.LogoutUser {
		fmt.Fprintln(a.out, "Logged out.")
		return
	}
	fmt.Fprintf(a.out, "\nSession ended (%s). Type 'login' to sign in again.\n", reason)
}
