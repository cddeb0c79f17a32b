package domain

// Verification describes one acceptable verified-claim criterion. A
// claim request may carry several alternatives; any one satisfying
// alternative is enough.
type Verification struct {
	TrustFramework string `json:"trust_framework,omitempty"`
	AssuranceLevel string `json:"assurance_level,omitempty"`
}

// ClaimDetail is the resolved requirement for a single claim.
type ClaimDetail struct {
	Essential bool `json:"essential"`

	// Verifications lists alternative verification criteria. Empty
	// means the claim is requested without a verification requirement.
	Verifications []Verification `json:"verifications,omitempty"`
}

// ResolvedClaims is the normalized form of an authorize request's claims
// parameter after filtering against the client's registered claims.
type ResolvedClaims struct {
	Userinfo map[string]ClaimDetail `json:"userinfo,omitempty"`
	IDToken  map[string]ClaimDetail `json:"id_token,omitempty"`
}

// Essential returns the userinfo claim names marked essential, and
// Voluntary the rest. Order is not guaranteed.
func (rc ResolvedClaims) Essential() []string {
	var out []string
	for name, d := range rc.Userinfo {
		if d.Essential {
			out = append(out, name)
		}
	}
	return out
}

func (rc ResolvedClaims) Voluntary() []string {
	var out []string
	for name, d := range rc.Userinfo {
		if !d.Essential {
			out = append(out, name)
		}
	}
	return out
}

// HasUserinfoClaims reports whether any userinfo claim was resolved.
func (rc ResolvedClaims) HasUserinfoClaims() bool {
	return len(rc.Userinfo) > 0
}
