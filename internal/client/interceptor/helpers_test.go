package interceptor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/refresh"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/testkit"
	"github.com/stretchr/testify/require"
)

type harness struct {
	srv     *testkit.APIServer
	store   *credentials.Store
	coord   *refresh.Coordinator
	i       *Interceptor
	factory *Factory

	mu      sync.Mutex
	logouts []common.LogoutReason
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{srv: testkit.NewAPIServer()}
	t.Cleanup(h.srv.Close)

	h.store = credentials.NewStore(metadata.NewMemoryRepository())
	h.coord = refresh.New(h.store, client.NewHTTPClient(h.srv.URL, 5*time.Second))

	cl, err := NewClassifier("", h.srv.URL)
	require.NoError(t, err)

	h.i = New(h.coord, h.logout, cl)
	h.factory = NewFactory(h.i, WithTimeout(5*time.Second))
	return h
}

func (h *harness) logout(ctx context.Context, reason common.LogoutReason) error {
	h.mu.Lock()
	h.logouts = append(h.logouts, reason)
	h.mu.Unlock()
	return h.store.Clear(ctx)
}

func (h *harness) Logouts() []common.LogoutReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]common.LogoutReason(nil), h.logouts...)
}

// login stores a fresh token pair issued by the fake server.
func (h *harness) login(t *testing.T) string {
	t.Helper()
	access := h.srv.AccessToken(10 * time.Minute)
	require.NoError(t, h.store.Set(context.Background(), access, h.srv.RefreshToken()))
	return access
}

type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSource) ValidAccessToken(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "tok", nil
}

func (c *countingSource) Refresh(context.Context) (string, error) {
	return "tok2", nil
}
