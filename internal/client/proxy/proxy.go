// Package proxy exposes the authenticated-call contract over local HTTP for
// callers that cannot link the Go client: requests to /api/* are forwarded to
// the application API through the interceptor, so they carry a valid bearer
// token and get the single refresh-and-retry on 401.
package proxy

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/idle"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/services"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	HeaderRequestID = "X-Request-Id"
	requestIDKey    = "request_id"

	shutdownTimeout = 15 * time.Second
)

// Deps are the session components the proxy serves.
type Deps struct {
	Session   services.SessionService
	Activity  *idle.Feed
	Transport http.RoundTripper
	Gatherer  prometheus.Gatherer
	Logger    logging.Logger
}

type Server struct {
	deps   Deps
	engine *gin.Engine
	proxy  *httputil.ReverseProxy
}

// New builds the router. upstream is the application API base URL.
func New(upstream string, deps Deps) (*Server, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}

	s := &Server{deps: deps}

	s.proxy = httputil.NewSingleHostReverseProxy(target)
	s.proxy.Transport = deps.Transport
	s.proxy.ErrorHandler = s.proxyError

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	r.GET("/healthz", healthz)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	// polling the status is not user activity
	sess := r.Group("/session")
	sess.GET("", s.status)
	sess.POST("/login", s.activity(), s.login)
	sess.POST("/logout", s.activity(), s.logout)

	r.Any("/api/*path", s.activity(), s.forward)

	s.engine = r
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info(ctx, "proxy listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.deps.Logger.Info(ctx, "shutting down proxy")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statusResponse struct {
	Authenticated      bool       `json:"authenticated"`
	Email              string     `json:"email,omitempty"`
	Role               string     `json:"role,omitempty"`
	Kind               string     `json:"kind,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	Idle               string     `json:"idle"`
	IdleWarningSeconds *int64     `json:"idleWarningSeconds,omitempty"`
}

func (s *Server) status(c *gin.Context) {
	st := s.deps.Session.Status(c.Request.Context())
	resp := statusResponse{
		Authenticated: st.Authenticated,
		Email:         st.Email,
		Role:          st.Role,
		Kind:          string(st.Kind),
		Idle:          st.Idle.String(),
	}
	if !st.ExpiresAt.IsZero() {
		resp.ExpiresAt = &st.ExpiresAt
	}
	if st.IdleRemaining > 0 {
		secs := int64(math.Ceil(st.IdleRemaining.Seconds()))
		resp.IdleWarningSeconds = &secs
	}
	c.JSON(http.StatusOK, resp)
}

type loginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": err.Error()})
		return
	}

	password := []byte(req.Password)
	defer common.WipeByteArray(password)

	err := s.deps.Session.Login(c.Request.Context(), req.Email, password, req.RememberMe)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, client.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
	case errors.Is(err, client.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "UPSTREAM_UNAVAILABLE"})
	default:
		s.deps.Logger.Error(c.Request.Context(), "login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "LOGIN_FAILED"})
	}
}

func (s *Server) logout(c *gin.Context) {
	if err := s.deps.Session.Logout(c.Request.Context(), common.LogoutUser); err != nil {
		s.deps.Logger.Error(c.Request.Context(), "logout failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "LOGOUT_FAILED"})
		return
	}
	c.Status(http.StatusNoContent)
}

// forward proxies the request upstream. Inbound credentials are dropped so
// the session's bearer token is the only one that reaches the API.
func (s *Server) forward(c *gin.Context) {
	c.Request.Header.Del(common.AuthorizationHeaderName)
	c.Request.Header.Del("Cookie")
	if id, ok := c.Get(requestIDKey); ok {
		c.Request.Header.Set(HeaderRequestID, id.(string))
	}
	s.proxy.ServeHTTP(c.Writer, c.Request)
}

func (s *Server) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusBadGateway, "UPSTREAM_ERROR"
	switch {
	case errors.Is(err, common.ErrAuthorizationFailed), errors.Is(err, common.ErrNoCredential):
		status, code = http.StatusUnauthorized, "SESSION_ENDED"
	case errors.Is(err, context.Canceled):
		return
	}

	s.deps.Logger.Warn(r.Context(), "proxy error", "status", status, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
}
