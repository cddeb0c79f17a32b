package service

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/idpsdk"
)

// ClaimsResolver normalizes an authorize request's scopes and claims
// parameter against a client's registration, and resolves which ACR
// values a transaction may authenticate under.
type ClaimsResolver struct {
	// ScopeClaims maps a scope name to the claims it implies, e.g.
	// profile -> name, birthdate, picture.
	ScopeClaims map[string][]string

	Catalog FactorCatalog
}

// ResolveClaims computes the transaction's resolved claim set. Claims
// arrive from two directions: the structured claims parameter (which
// can mark claims essential and attach verification criteria) and the
// requested scopes (which imply claims voluntarily). Anything the
// client did not register for is silently dropped; an explicit request
// always wins over a scope implication.
func (r *ClaimsResolver) ResolveClaims(
	req *idpsdk.OAuthDetailRequest,
	client *domain.Client,
) (domain.ResolvedClaims, error) {
	scopes := httpx.ParseSpaceDelimitedFields(req.Scope)
	if !slices.Contains(scopes, "openid") {
		return domain.ResolvedClaims{}, ErrInvalidScope
	}

	fromScopes := make(map[string]struct{})
	for _, scope := range scopes {
		for _, claim := range r.ScopeClaims[scope] {
			fromScopes[claim] = struct{}{}
		}
	}

	resolved := domain.ResolvedClaims{Userinfo: make(map[string]domain.ClaimDetail)}

	for _, claim := range client.Claims {
		if req.Claims != nil {
			if detail, ok := req.Claims.Userinfo[claim]; ok {
				d, err := toClaimDetail(detail)
				if err != nil {
					return domain.ResolvedClaims{}, err
				}
				resolved.Userinfo[claim] = d
				continue
			}
		}
		if _, ok := fromScopes[claim]; ok {
			resolved.Userinfo[claim] = domain.ClaimDetail{}
		}
	}

	if req.Claims != nil && len(req.Claims.IDToken) > 0 {
		for _, claim := range client.Claims {
			detail, ok := req.Claims.IDToken[claim]
			if !ok {
				continue
			}
			d, err := toClaimDetail(detail)
			if err != nil {
				return domain.ResolvedClaims{}, err
			}
			if resolved.IDToken == nil {
				resolved.IDToken = make(map[string]domain.ClaimDetail)
			}
			resolved.IDToken[claim] = d
		}
	}

	return resolved, nil
}

// ResolveACR picks the transaction's ACR list. Exactly one source wins,
// in strict precedence: the claims parameter's id_token acr values,
// then the acr_values request parameter, then the client's registered
// defaults. The winning list is then filtered against the client's
// registered ACRs preserving the winner's order; sources are never
// merged and an empty outcome is an error, not a fallthrough.
func (r *ClaimsResolver) ResolveACR(
	req *idpsdk.OAuthDetailRequest,
	client *domain.Client,
) ([]string, error) {
	if len(client.ACRValues) == 0 {
		return nil, ErrNoACRRegistered
	}

	var winner []string
	if req.Claims != nil {
		if detail, ok := req.Claims.IDToken["acr"]; ok && detail != nil {
			winner = detail.Values
		}
	}
	if len(winner) == 0 {
		winner = httpx.ParseSpaceDelimitedFields(req.ACRValues)
	}
	if len(winner) == 0 {
		winner = client.ACRValues
	}

	var filtered []string
	for _, acr := range winner {
		if slices.Contains(client.ACRValues, acr) && !slices.Contains(filtered, acr) {
			filtered = append(filtered, acr)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoACRRegistered
	}
	return filtered, nil
}

// AuthFactors expands ACR values into the factor combinations the UI
// may offer, in ACR precedence order with duplicates removed.
func (r *ClaimsResolver) AuthFactors(ctx context.Context, acrValues []string) ([][]domain.AuthFactor, error) {
	combos, err := r.Catalog.AuthFactors(ctx, acrValues)
	if err != nil {
		return nil, err
	}

	var out [][]domain.AuthFactor
	seen := make(map[string]struct{})
	for _, combo := range combos {
		key := comboKey(combo)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, combo)
	}
	return out, nil
}

// MatchAuthFactors finds the advertised combination whose factor types
// exactly equal the types answered by the UI. Subsets and supersets do
// not match.
func MatchAuthFactors(
	challenges []domain.AuthChallenge,
	combos [][]domain.AuthFactor,
) ([]domain.AuthFactor, error) {
	provided := domain.ChallengeTypes(challenges)
	if len(provided) == 0 {
		return nil, ErrAuthFactorMismatch
	}

	for _, combo := range combos {
		if slices.Equal(domain.FactorTypes(combo), provided) {
			return combo, nil
		}
	}
	return nil, ErrAuthFactorMismatch
}

func comboKey(combo []domain.AuthFactor) string {
	buf, _ := json.Marshal(domain.FactorTypes(combo))
	return string(buf)
}

// toClaimDetail converts a wire claim request entry. The verification
// member may be a single object or an array of alternatives.
func toClaimDetail(detail *idpsdk.ClaimRequestDetail) (domain.ClaimDetail, error) {
	if detail == nil {
		return domain.ClaimDetail{}, nil
	}

	d := domain.ClaimDetail{Essential: detail.Essential}
	if len(detail.Verification) == 0 {
		return d, nil
	}

	var single domain.Verification
	if err := json.Unmarshal(detail.Verification, &single); err == nil {
		d.Verifications = []domain.Verification{single}
		return d, nil
	}

	var many []domain.Verification
	if err := json.Unmarshal(detail.Verification, &many); err == nil {
		d.Verifications = many
		return d, nil
	}

	return domain.ClaimDetail{}, ErrInvalidRequest
}
