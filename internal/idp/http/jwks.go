package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/openauthority/idp/pkg/jwtx"
)

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	X   string `json:"x"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// JWKSHandler publishes the token verification key as a JWK set.
func JWKSHandler(signer *jwtx.EdDSASigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set := jwkSet{Keys: []jwk{{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: signer.KID(),
			Alg: signer.Alg(),
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(signer.Public()),
		}}}

		// Verification keys are static; let clients cache them.
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(set)
	}
}
