// Package common defines shared constants and sentinel errors used across
// client layers of sessionkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// ErrNoCredential: no access token is present when one is required and
	// there is no refresh credential to obtain one.
	ErrNoCredential = errors.New("no credential")

	// ErrMalformedCredential: the access token cannot be decoded for its expiry.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrRefreshFailed: the refresh call failed or was rejected. The session
	// is unrecoverable.
	ErrRefreshFailed = errors.New("refresh failed")

	// ErrAuthorizationFailed: a call was rejected as unauthorized even after
	// one refresh-and-retry.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// ErrSessionEnded: the session was logged out while an operation was in flight.
	ErrSessionEnded = errors.New("session ended")
)
