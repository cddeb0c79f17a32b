package domain

// ConsentAction tells the UI whether the user must be walked through a
// fresh consent screen or a previous decision can be replayed.
type ConsentAction string

const (
	ConsentActionCapture   ConsentAction = "CAPTURE"
	ConsentActionNoCapture ConsentAction = "NOCAPTURE"
)

// ConsentRecord is a user's durable consent decision for one client.
// Keyed by (ClientID, PSUToken).
type ConsentRecord struct {
	ClientID string `json:"client_id"`
	PSUToken string `json:"psu_token"`

	// GrantedClaims records each claim the user accepted, including
	// the verification requirement it was accepted under.
	GrantedClaims map[string]ClaimDetail `json:"granted_claims,omitempty"`

	// GrantedScopes maps each requested authorize scope to whether the
	// user permitted it.
	GrantedScopes map[string]bool `json:"granted_scopes,omitempty"`

	Signature string `json:"signature,omitempty"`
}

// AcceptedClaims returns the names of all granted claims.
func (r *ConsentRecord) AcceptedClaims() []string {
	var out []string
	for name := range r.GrantedClaims {
		out = append(out, name)
	}
	return out
}

// PermittedScopes returns the scopes the user permitted.
func (r *ConsentRecord) PermittedScopes() []string {
	var out []string
	for scope, granted := range r.GrantedScopes {
		if granted {
			out = append(out, scope)
		}
	}
	return out
}

// CoversScopes reports whether every requested scope was permitted.
func (r *ConsentRecord) CoversScopes(requested []string) bool {
	for _, scope := range requested {
		if !r.GrantedScopes[scope] {
			return false
		}
	}
	return true
}

// CoversClaim reports whether the stored grant for a claim satisfies the
// requested requirement. A request without verification criteria is
// satisfied by any grant of the claim; a request with criteria needs the
// stored grant to match at least one alternative exactly.
func (r *ConsentRecord) CoversClaim(name string, requested ClaimDetail) bool {
	granted, ok := r.GrantedClaims[name]
	if !ok {
		return false
	}
	if len(requested.Verifications) == 0 {
		return true
	}
	for _, want := range requested.Verifications {
		for _, have := range granted.Verifications {
			if have == want {
				return true
			}
		}
	}
	return false
}
