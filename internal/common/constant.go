// Package common contains shared constants and sentinel errors used across
// sessionkeeper components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer credential.
const AuthorizationHeaderName = "Authorization"

// AuthorizationMetadataKey is the gRPC metadata key carrying the bearer credential.
const AuthorizationMetadataKey = "authorization"

// BearerPrefix precedes the access token in both the header and the metadata value.
const BearerPrefix = "Bearer "

// Persisted state layout. These are logical keys; the backing repository
// decides how they are laid out physically.
const (
	KeyAccessToken       = "access-token"
	KeyRefreshToken      = "refresh-token"
	KeyAccessTokenExpiry = "access-token-expiry"
	KeySessionKind       = "session-kind"
	KeyRole              = "role"
	KeyDisplayEmail      = "display-email"

	// KeySealSalt is infrastructure, not session state: it survives logout.
	KeySealSalt = "seal-salt"
)

// SessionKeys lists every key that belongs to a session and is removed on logout.
var SessionKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyAccessTokenExpiry,
	KeySessionKind,
	KeyRole,
	KeyDisplayEmail,
}

// LogoutReason records why a session ended.
type LogoutReason string

const (
	LogoutUser         LogoutReason = "user"
	LogoutUnauthorized LogoutReason = "unauthorized"
	LogoutIdle         LogoutReason = "idle"
)
