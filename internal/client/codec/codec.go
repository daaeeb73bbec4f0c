// Package codec reads the expiry claim out of a three-part signed access
// token without validating its signature. Signature validation belongs to
// the server; the client only needs to know when to refresh.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// Claims is the subset of the token payload the client cares about.
type Claims struct {
	// Exp is the expiry instant in Unix seconds.
	Exp int64
}

// ExpiresAt returns Exp as a time.Time.
func (c Claims) ExpiresAt() time.Time {
	return time.Unix(c.Exp, 0)
}

// Decode splits token into its three dot-separated segments, base64url
// decodes the payload segment, parses it as JSON and extracts "exp".
//
// It reports false on any malformation (segment count, base64, JSON, missing
// or non-numeric exp) and never panics.
func Decode(token string) (Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, false
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, false
	}

	// Only exp is typed; other claims may carry any JSON shape.
	var body struct {
		Exp *jwt.NumericDate `json:"exp"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Claims{}, false
	}
	if body.Exp == nil {
		return Claims{}, false
	}

	return Claims{Exp: body.Exp.Unix()}, true
}

// Expiry is Decode for callers that want an error: it wraps
// common.ErrMalformedCredential when token has no readable expiry.
func Expiry(token string) (time.Time, error) {
	claims, ok := Decode(token)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no readable exp claim", common.ErrMalformedCredential)
	}
	return claims.ExpiresAt(), nil
}
