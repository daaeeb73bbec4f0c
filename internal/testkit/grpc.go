package testkit

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCAuth validates bearer metadata on incoming unary calls.
type GRPCAuth struct {
	Secret []byte

	mu        sync.Mutex
	deny      bool
	calls     int
	lastToken string
}

func (a *GRPCAuth) SetDeny(v bool) {
	a.mu.Lock()
	a.deny = v
	a.mu.Unlock()
}

func (a *GRPCAuth) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *GRPCAuth) LastToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastToken
}

// Unary is the server interceptor.
func (a *GRPCAuth) Unary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AuthorizationMetadataKey)
		if len(values) > 0 {
			accessToken = strings.TrimPrefix(values[0], common.BearerPrefix)
		}
	}

	a.mu.Lock()
	a.calls++
	a.lastToken = accessToken
	deny := a.deny
	a.mu.Unlock()

	if deny || accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if _, err := SubjectFromToken(accessToken, a.Secret); err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return handler(ctx, req)
}
