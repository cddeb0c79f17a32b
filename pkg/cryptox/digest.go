package cryptox

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/sha3"
)

// HashSHA3 returns the SHA3-256 digest of value as a base64url string
// (no padding). Authorization codes and link codes are stored and looked
// up exclusively by this digest, never by their raw value.
func HashSHA3(value string) string {
	sum := sha3.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// AccessTokenHash computes the OIDC at_hash of a signed token: the left
// half of the SHA-256 digest, base64url encoded without padding.
func AccessTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
