package interceptor

import (
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Factory hands out transports that all carry the same Interceptor. Build one
// per process and obtain every client through it.
type Factory struct {
	i       *Interceptor
	base    http.RoundTripper
	timeout time.Duration

	once      sync.Once
	transport http.RoundTripper
}

type FactoryOption func(*Factory)

// WithBaseTransport sets the round-tripper that actually sends requests.
func WithBaseTransport(rt http.RoundTripper) FactoryOption {
	return func(f *Factory) { f.base = rt }
}

// WithTimeout sets http.Client.Timeout on clients from NewHTTPClient.
func WithTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) { f.timeout = d }
}

func NewFactory(i *Interceptor, opts ...FactoryOption) *Factory {
	f := &Factory{i: i}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Transport returns the shared authenticated round-tripper.
func (f *Factory) Transport() http.RoundTripper {
	f.once.Do(func() {
		base := f.base
		if base == nil {
			base = http.DefaultTransport.(*http.Transport).Clone()
		}
		f.transport = f.i.RoundTripper(base)
	})
	return f.transport
}

func (f *Factory) NewHTTPClient() *http.Client {
	return &http.Client{Transport: f.Transport(), Timeout: f.timeout}
}

// DialOptions installs both gRPC interceptors.
func (f *Factory) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(f.i.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(f.i.StreamClientInterceptor()),
	}
}

// NewGRPCClient connects to target. Plaintext credentials are used unless
// extra supplies others.
func (f *Factory) NewGRPCClient(target string, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, f.DialOptions()...)
	opts = append(opts, extra...)
	return grpc.NewClient(target, opts...)
}
