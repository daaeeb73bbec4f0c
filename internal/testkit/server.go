package testkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// Password accepted by the fake login endpoint.
const Password = "secret"

// APIServer is a fake application backend: the session endpoints plus a
// protected /api/ surface that validates bearer tokens.
type APIServer struct {
	*httptest.Server

	Secret    []byte
	AccessTTL time.Duration

	mu                 sync.Mutex
	refreshToken       string
	rejectRefresh      bool
	alwaysUnauthorized bool
	revoked            map[string]bool
	gate               chan struct{}

	loginCalls   int
	refreshCalls int
	logoutCalls  int
	apiCalls     int
	lastAuth     string
	lastPath     string
}

// NewAPIServer starts the fake backend. The caller must Close it.
func NewAPIServer() *APIServer {
	s := &APIServer{
		Secret:       []byte("test-secret"),
		AccessTTL:    10 * time.Minute,
		refreshToken: "refresh-1",
		revoked:      make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session/login", s.handleLogin)
	mux.HandleFunc("POST /session/refresh", s.handleRefresh)
	mux.HandleFunc("POST /session/logout", s.handleLogout)
	mux.HandleFunc("/api/", s.handleAPI)

	s.Server = httptest.NewServer(mux)
	return s
}

// RefreshToken is the only refresh credential the server accepts.
func (s *APIServer) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// AccessToken mints an access token valid for ttl (negative ttl => expired).
func (s *APIServer) AccessToken(ttl time.Duration) string {
	tok, err := GenerateToken("user-1", s.Secret, time.Now().Add(ttl))
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *APIServer) SetRejectRefresh(v bool) {
	s.mu.Lock()
	s.rejectRefresh = v
	s.mu.Unlock()
}

func (s *APIServer) SetAlwaysUnauthorized(v bool) {
	s.mu.Lock()
	s.alwaysUnauthorized = v
	s.mu.Unlock()
}

// Revoke makes /api/ reject token even though it is still unexpired.
func (s *APIServer) Revoke(token string) {
	s.mu.Lock()
	s.revoked[token] = true
	s.mu.Unlock()
}

// HoldRefresh blocks refresh handlers until the returned func is called.
func (s *APIServer) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (s *APIServer) LoginCalls() int   { s.mu.Lock(); defer s.mu.Unlock(); return s.loginCalls }
func (s *APIServer) RefreshCalls() int { s.mu.Lock(); defer s.mu.Unlock(); return s.refreshCalls }
func (s *APIServer) LogoutCalls() int  { s.mu.Lock(); defer s.mu.Unlock(); return s.logoutCalls }
func (s *APIServer) APICalls() int     { s.mu.Lock(); defer s.mu.Unlock(); return s.apiCalls }

// LastAuthorization is the Authorization header of the latest /api/ call.
func (s *APIServer) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func (s *APIServer) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPath
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *APIServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	s.mu.Lock()
	s.loginCalls++
	s.mu.Unlock()

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  s.AccessToken(s.AccessTTL),
		"refreshToken": s.RefreshToken(),
		"role":         "manager",
	})
}

func (s *APIServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.refreshCalls++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	reject := s.rejectRefresh || req.RefreshToken != s.refreshToken
	s.mu.Unlock()

	if reject {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "refresh token expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": s.AccessToken(s.AccessTTL)})
}

func (s *APIServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.logoutCalls++
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get(common.AuthorizationHeaderName)

	s.mu.Lock()
	s.apiCalls++
	s.lastAuth = auth
	s.lastPath = r.URL.Path
	deny := s.alwaysUnauthorized
	token := strings.TrimPrefix(auth, common.BearerPrefix)
	revoked := s.revoked[token]
	s.mu.Unlock()

	// Uploads carry their own credential, checked by a gateway in front of us.
	if strings.HasPrefix(r.URL.Path, "/api/upload") {
		writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
		return
	}

	if deny || revoked || !strings.HasPrefix(auth, common.BearerPrefix) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	subject, err := SubjectFromToken(token, s.Secret)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	writeJSON(w, http.StatusOK, map[string]any{"subject": subject, "path": r.URL.Path, "body": body})
}
