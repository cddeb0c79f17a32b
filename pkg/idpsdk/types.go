package idpsdk

import (
	"encoding/json"

	"github.com/openauthority/idp/pkg/cryptox"
)

// HeaderOAuthDetailsHash is the request header that echoes the hash of
// the oauth-details response a UI is acting on. The server pins every
// later step of the transaction to it.
const HeaderOAuthDetailsHash = "oauth-details-hash"

// HashOAuthDetails computes the canonical hash of an oauth-details
// response. The server stores it on the transaction and rejects
// requests that echo a different one.
func HashOAuthDetails(resp *OAuthDetailResponse) string {
	buf, _ := json.Marshal(resp)
	return cryptox.HashSHA3(string(buf))
}

// ============================================================================
// Authorize Flow Types
// ============================================================================

// ClaimRequestDetail is one claim entry inside the OIDC claims request
// parameter. A nil detail (JSON null) means the claim is requested
// voluntarily with no constraints.
type ClaimRequestDetail struct {
	// Essential marks the claim as required for the transaction.
	Essential bool `json:"essential,omitempty"`

	// Values restricts acceptable values; only meaningful for the
	// id_token "acr" claim where it lists requested ACRs.
	Values []string `json:"values,omitempty"`

	// Verification carries the requested verification criteria: either
	// a single object or an array of alternatives.
	Verification json.RawMessage `json:"verification,omitempty"`
}

// ClaimsRequest mirrors the OIDC claims request parameter.
type ClaimsRequest struct {
	Userinfo map[string]*ClaimRequestDetail `json:"userinfo,omitempty"`
	IDToken  map[string]*ClaimRequestDetail `json:"id_token,omitempty"`
}

// OAuthDetailRequest starts an authorization transaction. It is the
// JSON form of an OIDC authorize request.
type OAuthDetailRequest struct {
	ClientID     string         `json:"client_id"`
	ResponseType string         `json:"response_type"`
	Scope        string         `json:"scope"`
	RedirectURI  string         `json:"redirect_uri"`
	Nonce        string         `json:"nonce"`
	State        string         `json:"state,omitempty"`
	ACRValues    string         `json:"acr_values,omitempty"`
	Claims       *ClaimsRequest `json:"claims,omitempty"`
	Display      string         `json:"display,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`

	// PKCE binding, verified again at token redemption.
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

// AuthFactor is one factor of an advertised authentication combination.
type AuthFactor struct {
	Type     string   `json:"type"`
	Count    int      `json:"count,omitempty"`
	SubTypes []string `json:"subTypes,omitempty"`
}

// OAuthDetailResponse tells the UI what the transaction needs: which
// factor combinations are acceptable, which claims and scopes will be
// asked for, and how to present the client.
type OAuthDetailResponse struct {
	TransactionID   string         `json:"transaction_id"`
	AuthFactors     [][]AuthFactor `json:"auth_factors"`
	EssentialClaims []string       `json:"essential_claims,omitempty"`
	VoluntaryClaims []string       `json:"voluntary_claims,omitempty"`
	AuthorizeScopes []string       `json:"authorize_scopes,omitempty"`
	ClientName      string         `json:"client_name,omitempty"`
	LogoURL         string         `json:"logo_url,omitempty"`
	RedirectURI     string         `json:"redirect_uri"`
}

// OtpRequest asks the authenticator to dispatch an OTP.
type OtpRequest struct {
	TransactionID string   `json:"transaction_id"`
	IndividualID  string   `json:"individual_id"`
	OtpChannels   []string `json:"otp_channels"`

	// DetailsHash carries the oauth-details-hash header, not the body.
	DetailsHash string `json:"-"`
}

// OtpResponse reports where the OTP went, masked for display.
type OtpResponse struct {
	TransactionID string `json:"transaction_id"`
	MaskedEmail   string `json:"masked_email,omitempty"`
	MaskedMobile  string `json:"masked_mobile,omitempty"`
}

// AuthChallenge is a single factor response collected from the user.
type AuthChallenge struct {
	AuthFactorType string `json:"auth_factor_type"`
	Challenge      string `json:"challenge"`
	Format         string `json:"format,omitempty"`
}

// AuthRequest submits the user's authentication challenges.
type AuthRequest struct {
	TransactionID string          `json:"transaction_id"`
	IndividualID  string          `json:"individual_id"`
	Challenges    []AuthChallenge `json:"challenge_list"`

	// DetailsHash carries the oauth-details-hash header, not the body.
	DetailsHash string `json:"-"`
}

// AuthResponse reports the consent decision the UI must act on next.
type AuthResponse struct {
	TransactionID string `json:"transaction_id"`
	ConsentAction string `json:"consent_action"`
}

// AuthCodeRequest finalizes consent and asks for the authorization code.
type AuthCodeRequest struct {
	TransactionID   string   `json:"transaction_id"`
	AcceptedClaims  []string `json:"accepted_claims,omitempty"`
	PermittedScopes []string `json:"permitted_authorize_scopes,omitempty"`

	// DetailsHash carries the oauth-details-hash header, not the body.
	DetailsHash string `json:"-"`
}

// AuthCodeResponse carries the single-use authorization code back to
// the client via its redirect URI.
type AuthCodeResponse struct {
	Code        string `json:"code"`
	State       string `json:"state,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	RedirectURI string `json:"redirect_uri"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is the OAuth2 token endpoint response per RFC 6749.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ============================================================================
// Linked (Cross-Device) Flow Types
// ============================================================================

// LinkCodeRequest asks for a fresh link code on the origin device.
type LinkCodeRequest struct {
	TransactionID string `json:"transaction_id"`
}

// LinkCodeResponse returns the issued code and its absolute expiry (UTC,
// RFC 3339).
type LinkCodeResponse struct {
	TransactionID  string `json:"transaction_id"`
	LinkCode       string `json:"link_code"`
	ExpireDateTime string `json:"expire_date_time"`
}

// LinkTransactionRequest claims a link code from the secondary device.
type LinkTransactionRequest struct {
	LinkCode string `json:"link_code"`
}

// LinkTransactionResponse hands the secondary device everything it
// needs to drive authentication for the origin transaction.
type LinkTransactionResponse struct {
	LinkTransactionID string         `json:"link_transaction_id"`
	AuthFactors       [][]AuthFactor `json:"auth_factors"`
	EssentialClaims   []string       `json:"essential_claims,omitempty"`
	VoluntaryClaims   []string       `json:"voluntary_claims,omitempty"`
	AuthorizeScopes   []string       `json:"authorize_scopes,omitempty"`
	ClientName        string         `json:"client_name,omitempty"`
	LogoURL           string         `json:"logo_url,omitempty"`
}

// LinkedOtpRequest dispatches an OTP within a linked transaction.
type LinkedOtpRequest struct {
	LinkTransactionID string   `json:"link_transaction_id"`
	IndividualID      string   `json:"individual_id"`
	OtpChannels       []string `json:"otp_channels"`
}

// LinkedAuthRequest submits challenges for a linked transaction.
type LinkedAuthRequest struct {
	LinkTransactionID string          `json:"link_transaction_id"`
	IndividualID      string          `json:"individual_id"`
	Challenges        []AuthChallenge `json:"challenge_list"`
}

// LinkedAuthResponse reports the linked flow's consent decision.
type LinkedAuthResponse struct {
	LinkTransactionID string `json:"link_transaction_id"`
	ConsentAction     string `json:"consent_action"`
}

// LinkedConsentRequest records the user's consent on the secondary
// device.
type LinkedConsentRequest struct {
	LinkTransactionID string   `json:"link_transaction_id"`
	AcceptedClaims    []string `json:"accepted_claims,omitempty"`
	PermittedScopes   []string `json:"permitted_authorize_scopes,omitempty"`
}

// LinkedConsentResponse acknowledges the recorded consent.
type LinkedConsentResponse struct {
	LinkTransactionID string `json:"link_transaction_id"`
}

// LinkStatus values reported by the link-status long poll.
const (
	LinkStatusLinked = "LINKED"
)

// LinkStatusRequest long-polls for a code being claimed. TransactionID
// must be the origin transaction that generated the code.
type LinkStatusRequest struct {
	TransactionID string `json:"transaction_id"`
	LinkCode      string `json:"link_code"`
}

// LinkStatusResponse resolves once the code is claimed.
type LinkStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	LinkStatus    string `json:"link_status"`
}

// LinkAuthCodeRequest long-polls for the authorization code produced by
// a completed linked flow.
type LinkAuthCodeRequest struct {
	TransactionID string `json:"transaction_id"`
	LinkedCode    string `json:"linked_code"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthChecks reports the status of critical dependencies.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
	Signer   string `json:"signer,omitempty"`
}

// HealthResponse is returned by the livez and readyz endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
