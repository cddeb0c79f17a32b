package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/pkg/cryptox"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/idpsdk"
	"github.com/openauthority/idp/pkg/idx"
	"github.com/openauthority/idp/pkg/slogx"
)

// AuthorizeService drives the same-device authorization flow from the
// initial oauth-details call up to authorization code issuance.
type AuthorizeService struct {
	Clients  ClientRegistry
	Store    *store.Transactions
	Resolver *ClaimsResolver
	Consent  *ConsentService
	Auth     Authenticator

	// AuthorizeScopes are the scopes that require explicit consent.
	// Requested scopes outside this list never reach the consent step.
	AuthorizeScopes []string

	// AuthTxnIDLength is the length of the derived authenticator
	// transaction id.
	AuthTxnIDLength int

	// LinkCodeLimit is the total link-code generation budget per
	// transaction; LinkCodeQueueCapacity bounds the visible recency
	// window of active codes.
	LinkCodeLimit         int
	LinkCodeQueueCapacity int
}

// GetOauthDetails validates an authorize request, creates the
// transaction in the pre-auth stage and returns the details the UI
// needs to run authentication.
func (s *AuthorizeService) GetOauthDetails(
	ctx context.Context,
	req *idpsdk.OAuthDetailRequest,
) (*idpsdk.OAuthDetailResponse, error) {
	log := slogx.FromContext(ctx)

	client, err := s.Clients.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if client.Status != domain.ClientStatusActive {
		return nil, ErrInvalidClient
	}

	if !client.MatchesRedirectURI(req.RedirectURI) {
		return nil, ErrInvalidRedirectURI
	}
	if req.Nonce == "" || req.ResponseType != "code" {
		return nil, ErrInvalidRequest
	}
	if req.CodeChallenge != "" {
		switch req.CodeChallengeMethod {
		case "plain", "S256":
		default:
			return nil, ErrUnsupportedPKCEMethod
		}
	}

	resolved, err := s.Resolver.ResolveClaims(req, client)
	if err != nil {
		return nil, err
	}
	acrs, err := s.Resolver.ResolveACR(req, client)
	if err != nil {
		return nil, err
	}
	combos, err := s.Resolver.AuthFactors(ctx, acrs)
	if err != nil {
		return nil, err
	}
	if len(combos) == 0 {
		return nil, ErrNoACRRegistered
	}

	txnID := idx.New().String()
	txn := &domain.Transaction{
		TransactionID:            txnID,
		ClientID:                 client.ID,
		RelyingPartyID:           client.RelyingPartyID,
		RedirectURI:              req.RedirectURI,
		ResponseType:             req.ResponseType,
		Nonce:                    req.Nonce,
		State:                    req.State,
		ResolvedClaims:           resolved,
		EssentialClaims:          resolved.Essential(),
		VoluntaryClaims:          resolved.Voluntary(),
		RequestedAuthorizeScopes: intersect(httpx.ParseSpaceDelimitedFields(req.Scope), s.AuthorizeScopes),
		RequestedACRValues:       acrs,
		AuthTransactionID:        deriveAuthTransactionID(txnID, s.AuthTxnIDLength),
		CodeChallenge:            req.CodeChallenge,
		CodeChallengeMethod:      req.CodeChallengeMethod,
		CurrentLinkCodeLimit:     s.LinkCodeLimit,
		LinkCodeQueue:            domain.NewLinkCodeQueue(s.LinkCodeQueueCapacity),
	}

	resp := &idpsdk.OAuthDetailResponse{
		TransactionID:   txnID,
		AuthFactors:     toSDKFactors(combos),
		EssentialClaims: txn.EssentialClaims,
		VoluntaryClaims: txn.VoluntaryClaims,
		AuthorizeScopes: txn.RequestedAuthorizeScopes,
		ClientName:      client.Name,
		LogoURL:         client.LogoURI,
		RedirectURI:     req.RedirectURI,
	}
	txn.OAuthDetailsHash = idpsdk.HashOAuthDetails(resp)

	if err := s.Store.Create(ctx, store.StagePreAuth, txnID, txn); err != nil {
		return nil, err
	}

	log.Info("authorization transaction created",
		"transaction_id", txnID,
		"client_id", client.ID,
		"acr_values", acrs,
	)
	return resp, nil
}

// SendOtp dispatches an OTP through the authenticator for a pending
// transaction. The authenticator must echo the derived auth transaction
// id, otherwise the dispatch is treated as failed.
func (s *AuthorizeService) SendOtp(ctx context.Context, req *idpsdk.OtpRequest) (*idpsdk.OtpResponse, error) {
	txn, err := s.Store.Get(ctx, store.StagePreAuth, req.TransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}
	if err := checkDetailsHash(txn, req.DetailsHash); err != nil {
		return nil, err
	}
	return sendOtp(ctx, s.Auth, txn, req.IndividualID, req.OtpChannels)
}

// Authenticate verifies the submitted challenges against the advertised
// factor combinations, runs the authenticator, decides consent and
// promotes the transaction to the authenticated stage.
func (s *AuthorizeService) Authenticate(ctx context.Context, req *idpsdk.AuthRequest) (*idpsdk.AuthResponse, error) {
	log := slogx.FromContext(ctx)

	txn, err := s.Store.Get(ctx, store.StagePreAuth, req.TransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}
	if err := checkDetailsHash(txn, req.DetailsHash); err != nil {
		return nil, err
	}

	if err := authenticate(ctx, s.Auth, s.Resolver, s.Consent, txn, req.IndividualID, toDomainChallenges(req.Challenges)); err != nil {
		return nil, err
	}

	err = s.Store.Promote(ctx, store.StagePreAuth, store.StageAuthenticated,
		req.TransactionID, req.TransactionID, txn)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	log.Info("transaction authenticated",
		"transaction_id", req.TransactionID,
		"acr", txn.MatchedACR,
		"consent_action", txn.ConsentAction,
	)
	return &idpsdk.AuthResponse{
		TransactionID: req.TransactionID,
		ConsentAction: string(txn.ConsentAction),
	}, nil
}

// GetAuthCode finalizes consent and issues a single-use authorization
// code. The transaction moves to the auth-code stage keyed by the
// code's hash, so redemption needs nothing but the code itself.
func (s *AuthorizeService) GetAuthCode(ctx context.Context, req *idpsdk.AuthCodeRequest) (*idpsdk.AuthCodeResponse, error) {
	log := slogx.FromContext(ctx)

	txn, err := s.Store.Get(ctx, store.StageAuthenticated, req.TransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}
	if err := checkDetailsHash(txn, req.DetailsHash); err != nil {
		return nil, err
	}

	if txn.ConsentAction == domain.ConsentActionCapture {
		if err := s.Consent.ValidateSubmission(txn, req.AcceptedClaims, req.PermittedScopes); err != nil {
			return nil, err
		}
		txn.AcceptedClaims = req.AcceptedClaims
		txn.PermittedScopes = req.PermittedScopes
	}
	// NOCAPTURE keeps the values adopted from the stored record; the
	// submission is ignored.

	if err := s.Consent.Persist(ctx, txn); err != nil {
		return nil, err
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	txn.CodeHash = cryptox.HashSHA3(code)

	err = s.Store.Promote(ctx, store.StageAuthenticated, store.StageAuthCode,
		req.TransactionID, txn.CodeHash, txn)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	log.Info("authorization code issued", "transaction_id", req.TransactionID)
	return &idpsdk.AuthCodeResponse{
		Code:        code,
		State:       txn.State,
		Nonce:       txn.Nonce,
		RedirectURI: txn.RedirectURI,
	}, nil
}

// sendOtp is shared by the direct and linked flows.
func sendOtp(
	ctx context.Context,
	auth Authenticator,
	txn *domain.Transaction,
	individualID string,
	otpChannels []string,
) (*idpsdk.OtpResponse, error) {
	log := slogx.FromContext(ctx)

	result, err := auth.SendOtp(ctx, txn.RelyingPartyID, txn.ClientID,
		txn.AuthTransactionID, individualID, otpChannels)
	if err != nil {
		log.Warn("otp dispatch failed", "transaction_id", txn.TransactionID, "err", err)
		return nil, ErrSendOtpFailed
	}
	if result.TransactionID != txn.AuthTransactionID {
		return nil, ErrSendOtpFailed
	}

	return &idpsdk.OtpResponse{
		TransactionID: txn.TransactionID,
		MaskedEmail:   result.MaskedEmail,
		MaskedMobile:  result.MaskedMobile,
	}, nil
}

// authenticate runs factor matching, the authenticator call and the
// consent decision, mutating txn in place. Shared by the direct and
// linked flows; the caller promotes afterwards.
func authenticate(
	ctx context.Context,
	auth Authenticator,
	resolver *ClaimsResolver,
	consent *ConsentService,
	txn *domain.Transaction,
	individualID string,
	challenges []domain.AuthChallenge,
) error {
	matchedACR, combo, err := matchTransactionFactors(ctx, resolver, txn, challenges)
	if err != nil {
		return err
	}

	result, err := auth.KycAuth(ctx, txn.RelyingPartyID, txn.ClientID,
		txn.AuthTransactionID, individualID, challenges)
	if err != nil {
		return ErrAuthFailed
	}
	if result.KycToken == "" || result.PartnerSpecificUserToken == "" {
		return ErrAuthFailed
	}

	txn.IndividualID = individualID
	txn.KycToken = result.KycToken
	txn.PartnerSpecificUserToken = result.PartnerSpecificUserToken
	txn.ProvidedAuthFactors = [][]string{domain.FactorTypes(combo)}
	txn.MatchedACR = matchedACR
	txn.AuthTimeInSeconds = time.Now().Unix()

	return consent.Decide(ctx, txn)
}

// matchTransactionFactors matches challenges per ACR in precedence
// order, so the matched ACR is the strongest requested one the user
// actually satisfied.
func matchTransactionFactors(
	ctx context.Context,
	resolver *ClaimsResolver,
	txn *domain.Transaction,
	challenges []domain.AuthChallenge,
) (string, []domain.AuthFactor, error) {
	for _, acr := range txn.RequestedACRValues {
		combos, err := resolver.AuthFactors(ctx, []string{acr})
		if err != nil {
			return "", nil, err
		}
		combo, err := MatchAuthFactors(challenges, combos)
		if err == nil {
			return acr, combo, nil
		}
	}
	return "", nil, ErrAuthFactorMismatch
}

// deriveAuthTransactionID derives the authenticator-facing id from the
// transaction id: strip separator characters, then read bytes from the
// end backwards, wrapping around until the target length is filled.
func deriveAuthTransactionID(transactionID string, length int) string {
	stripped := make([]byte, 0, len(transactionID))
	for i := 0; i < len(transactionID); i++ {
		if transactionID[i] == '_' || transactionID[i] == '-' {
			continue
		}
		stripped = append(stripped, transactionID[i])
	}
	if len(stripped) == 0 || length <= 0 {
		return ""
	}

	out := make([]byte, length)
	i := len(stripped) - 1
	for j := 0; j < length; j++ {
		out[j] = stripped[i]
		i--
		if i < 0 {
			i = len(stripped) - 1
		}
	}
	return string(out)
}

// checkDetailsHash verifies the oauth-details-hash echo against the
// fingerprint stored when the transaction was created. Callers that do
// not send the header skip the pin.
func checkDetailsHash(txn *domain.Transaction, hash string) error {
	if hash != "" && hash != txn.OAuthDetailsHash {
		return ErrInvalidRequest
	}
	return nil
}

func toSDKFactors(combos [][]domain.AuthFactor) [][]idpsdk.AuthFactor {
	out := make([][]idpsdk.AuthFactor, len(combos))
	for i, combo := range combos {
		out[i] = make([]idpsdk.AuthFactor, len(combo))
		for j, f := range combo {
			out[i][j] = idpsdk.AuthFactor{Type: f.Type, Count: f.Count, SubTypes: f.SubTypes}
		}
	}
	return out
}

func toDomainChallenges(challenges []idpsdk.AuthChallenge) []domain.AuthChallenge {
	out := make([]domain.AuthChallenge, len(challenges))
	for i, c := range challenges {
		out[i] = domain.AuthChallenge{
			AuthFactorType: c.AuthFactorType,
			Challenge:      c.Challenge,
			Format:         c.Format,
		}
	}
	return out
}

// intersect returns the members of a that also appear in b, preserving
// a's order and dropping duplicates.
func intersect(a, b []string) []string {
	var out []string
	for _, v := range a {
		if slices.Contains(b, v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
