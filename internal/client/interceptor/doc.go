// Package interceptor authenticates outbound calls to the application's own
// API without the call sites knowing about tokens.
//
// Every internal call gets a bearer token from the TokenSource before it is
// sent. A call rejected as unauthorized is resent exactly once after a
// refresh; if the refresh or the resend fails, the session is ended through
// the logout callback and the call fails with common.ErrAuthorizationFailed.
// Connectivity errors are returned untouched and never end the session.
//
// Transports are obtained from a Factory built once per process: HTTP
// clients and round-trippers, gRPC dial options and connections, and the
// local reverse proxy all share the same Interceptor.
package interceptor
