package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// AccessClaims are the claims carried by issued access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Scope is the space-joined list of permitted scopes.
	Scope string `json:"scope,omitempty"`

	// ClientID identifies the requesting client application.
	ClientID string `json:"client_id,omitempty"`
}

// IDClaims are the claims carried by issued ID tokens.
type IDClaims struct {
	jwt.RegisteredClaims

	Nonce string `json:"nonce,omitempty"`

	// ACR is the authentication context class actually satisfied.
	ACR string `json:"acr,omitempty"`

	// AuthTime is the epoch second the user authenticated at.
	AuthTime int64 `json:"auth_time,omitempty"`

	// AtHash binds the ID token to its sibling access token.
	AtHash string `json:"at_hash,omitempty"`
}

// NewAccessClaims builds access-token claims for a subject.
func NewAccessClaims(issuer, subject, clientID, scope string, ttl time.Duration, now time.Time) AccessClaims {
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope:    scope,
		ClientID: clientID,
	}
}

// NewIDClaims builds ID-token claims for a completed authentication.
func NewIDClaims(
	issuer, subject, clientID, nonce, acr, atHash string,
	authTime int64,
	ttl time.Duration,
	now time.Time,
) IDClaims {
	return IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Nonce:    nonce,
		ACR:      acr,
		AuthTime: authTime,
		AtHash:   atHash,
	}
}
