// Package testkit provides the server half of the session contract for
// tests: token minting, a fake session API and a gRPC auth interceptor.
package testkit

import (
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the subject's role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

var errInvalidToken = errors.New("invalid token")

// tokenSeq keeps tokens minted within the same second distinct.
var tokenSeq atomic.Int64

// GenerateToken signs an HS256 token for subject expiring at expiresAt.
func GenerateToken(subject string, secretKey []byte, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        strconv.FormatInt(tokenSeq.Add(1), 10),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	return token.SignedString(secretKey)
}

// SubjectFromToken validates signature and expiry and returns the subject.
func SubjectFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}
