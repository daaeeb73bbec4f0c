package interceptor

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var errUnauthenticatedAfterRetry = errors.New("rpc rejected after token refresh")

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationMetadataKey, common.BearerPrefix+token)
	return metadata.NewOutgoingContext(ctx, md)
}

func hasAccessToken(ctx context.Context) bool {
	md, ok := metadata.FromOutgoingContext(ctx)
	return ok && len(md.Get(common.AuthorizationMetadataKey)) > 0
}

// UnaryClientInterceptor authenticates unary RPCs and resends a call once
// after codes.Unauthenticated.
func (i *Interceptor) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if hasAccessToken(ctx) {
			i.metrics.Request("skipped")
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		i.metrics.Request("internal")

		token, err := i.tokens.ValidAccessToken(ctx)
		if err != nil {
			return i.fail(ctx, err)
		}

		err = invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		token, err = i.tokens.Refresh(ctx)
		if err != nil {
			return i.fail(ctx, err)
		}

		i.metrics.Retry()
		err = invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}
		return i.fail(ctx, errors.Join(errUnauthenticatedAfterRetry, err))
	}
}

// StreamClientInterceptor only attaches the token. A stream cannot be
// replayed, so an Unauthenticated stream is reported to the caller as is.
func (i *Interceptor) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		if hasAccessToken(ctx) {
			i.metrics.Request("skipped")
			return streamer(ctx, desc, cc, method, opts...)
		}
		i.metrics.Request("internal")

		token, err := i.tokens.ValidAccessToken(ctx)
		if err != nil {
			return nil, i.fail(ctx, err)
		}
		return streamer(withAccessToken(ctx, token), desc, cc, method, opts...)
	}
}
