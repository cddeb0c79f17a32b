package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken reports a token that failed signature or claim checks.
var ErrInvalidToken = errors.New("jwtx: invalid token")

// Verifier checks access tokens produced by the matching EdDSA signer.
type Verifier struct {
	pub    ed25519.PublicKey
	issuer string
}

// Verifier returns a Verifier bound to this signer's public key.
func (s *EdDSASigner) Verifier(issuer string) *Verifier {
	return &Verifier{pub: s.pub, issuer: issuer}
}

// VerifyAccessToken parses and validates a compact access token,
// enforcing signature, expiry and issuer.
func (v *Verifier) VerifyAccessToken(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return v.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &claims, nil
}
