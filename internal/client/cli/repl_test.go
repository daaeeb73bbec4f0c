package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	touches  int
	calls    []string
	getErr   error
}

func (f *fakeExec) isLoggedIn(context.Context) bool { return f.loggedIn }
func (f *fakeExec) Touch()                          { f.touches++ }
func (f *fakeExec) Login(context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) Status(context.Context) error { f.calls = append(f.calls, "status"); return nil }
func (f *fakeExec) Token(context.Context) error  { f.calls = append(f.calls, "token"); return nil }
func (f *fakeExec) Get(_ context.Context, path string) error {
	f.calls = append(f.calls, "get "+path)
	return f.getErr
}

func script(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	exec := &fakeExec{}
	var out bytes.Buffer

	runREPL(context.Background(), exec, func() string { return "status" },
		script("help", "login", "help", "", "status", "token", "get /api/me", "foobar", "logout", "exit", "status"), &out)

	assert.Equal(t, []string{"login", "status", "token", "get /api/me", "logout"}, exec.calls)
	assert.Equal(t, 9, exec.touches, "every non-empty line up to exit counts as activity")

	s := out.String()
	assert.Contains(t, s, "Available commands: login, exit")
	assert.Contains(t, s, "Available commands: status, token, get <path>, logout, exit")
	assert.Contains(t, s, "Unknown command: foobar")
	assert.Contains(t, s, "Bye!")
	assert.Contains(t, s, "sk status> ")
}

func TestRunREPL_UsageAndErrors(t *testing.T) {
	exec := &fakeExec{loggedIn: true, getErr: errors.New("boom")}
	var out bytes.Buffer

	runREPL(context.Background(), exec, func() string { return "s" }, script("get", "get x", "quit"), &out)

	assert.Equal(t, []string{"get x"}, exec.calls)
	assert.Contains(t, out.String(), "Usage: get <path>")
	assert.Contains(t, out.String(), "error: boom")
}

func TestRunREPL_EOFAndCanceledContext(t *testing.T) {
	exec := &fakeExec{}
	var out bytes.Buffer

	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("status")), &out)
	assert.Equal(t, []string{"status"}, exec.calls, "last line without newline still runs")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, script("login"), &out)
	assert.Empty(t, exec.calls)
}
