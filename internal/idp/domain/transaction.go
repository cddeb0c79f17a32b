package domain

// Transaction carries the full state of one authorization attempt as it
// moves through the flow stages. It is serialized into the transaction
// store between steps, so every field must round-trip through JSON.
type Transaction struct {
	TransactionID  string `json:"transaction_id"`
	ClientID       string `json:"client_id"`
	RelyingPartyID string `json:"relying_party_id"`
	RedirectURI    string `json:"redirect_uri"`
	ResponseType   string `json:"response_type"`
	Nonce          string `json:"nonce,omitempty"`
	State          string `json:"state,omitempty"`

	// Claims and scopes resolved from the authorize request.
	ResolvedClaims           ResolvedClaims `json:"resolved_claims"`
	EssentialClaims          []string       `json:"essential_claims,omitempty"`
	VoluntaryClaims          []string       `json:"voluntary_claims,omitempty"`
	RequestedAuthorizeScopes []string       `json:"requested_authorize_scopes,omitempty"`
	RequestedACRValues       []string       `json:"requested_acr_values,omitempty"`

	// AuthTransactionID is the identifier handed to the backing
	// authenticator. Derived from TransactionID, never random.
	AuthTransactionID string `json:"auth_transaction_id"`

	// Results of a successful authentication.
	IndividualID            string     `json:"individual_id,omitempty"`
	KycToken                string     `json:"kyc_token,omitempty"`
	PartnerSpecificUserToken string    `json:"psu_token,omitempty"`
	ProvidedAuthFactors     [][]string `json:"provided_auth_factors,omitempty"`
	MatchedACR              string     `json:"matched_acr,omitempty"`
	AuthTimeInSeconds       int64      `json:"auth_time_in_seconds,omitempty"`

	// Consent outcome.
	ConsentAction   ConsentAction `json:"consent_action,omitempty"`
	AcceptedClaims  []string      `json:"accepted_claims,omitempty"`
	PermittedScopes []string      `json:"permitted_scopes,omitempty"`

	// Authorization code issuance and token exchange artifacts. Only
	// hashes of the code and access token are ever stored.
	CodeHash        string `json:"code_hash,omitempty"`
	AccessTokenHash string `json:"access_token_hash,omitempty"`
	EncryptedKyc    string `json:"encrypted_kyc,omitempty"`

	// PKCE binding captured at the authorize request.
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	// Cross-device linking state.
	CurrentLinkCodeLimit int           `json:"current_link_code_limit"`
	LinkCodeQueue        *LinkCodeQueue `json:"link_code_queue,omitempty"`
	LinkedTransactionID  string        `json:"linked_transaction_id,omitempty"`
	LinkedCodeHash       string        `json:"linked_code_hash,omitempty"`

	// OAuthDetailsHash pins subsequent calls to the exact detail
	// response the UI received.
	OAuthDetailsHash string `json:"oauth_details_hash,omitempty"`
}

// IsAuthenticated reports whether the backing authenticator vouched for
// this transaction.
func (t *Transaction) IsAuthenticated() bool {
	return t.KycToken != "" && t.PartnerSpecificUserToken != ""
}
