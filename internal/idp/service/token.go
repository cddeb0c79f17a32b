package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/pkg/cryptox"
	"github.com/openauthority/idp/pkg/idpsdk"
	"github.com/openauthority/idp/pkg/jwtx"
	"github.com/openauthority/idp/pkg/slogx"
)

// TokenRequest carries the form parameters of a token endpoint call.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

// TokenService redeems authorization codes for tokens and serves the
// userinfo payload released by the exchange.
type TokenService struct {
	Store    *store.Transactions
	Auth     Authenticator
	Signer   TokenSigner
	Verifier *jwtx.Verifier

	Issuer         string
	AccessTokenTTL time.Duration
}

// ExchangeCode redeems a single-use authorization code. Validation runs
// against the stored transaction before the code is consumed, so a
// failed PKCE check does not burn the code; consumption itself is the
// atomic promote, which makes concurrent redeemers lose cleanly.
func (s *TokenService) ExchangeCode(ctx context.Context, req *TokenRequest) (*idpsdk.TokenResponse, error) {
	log := slogx.FromContext(ctx)

	if req.GrantType != "authorization_code" || req.Code == "" {
		return nil, ErrInvalidRequest
	}

	codeHash := cryptox.HashSHA3(req.Code)
	txn, err := s.Store.Get(ctx, store.StageAuthCode, codeHash)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	if req.ClientID != txn.ClientID {
		return nil, ErrInvalidClient
	}
	if req.RedirectURI != txn.RedirectURI {
		return nil, ErrInvalidRedirectURI
	}
	if err := verifyPKCE(txn.CodeChallenge, txn.CodeChallengeMethod, req.CodeVerifier); err != nil {
		return nil, err
	}

	now := time.Now()
	scope := strings.Join(append([]string{"openid"}, txn.PermittedScopes...), " ")
	accessToken, err := s.Signer.Sign(jwtx.NewAccessClaims(
		s.Issuer, txn.PartnerSpecificUserToken, txn.ClientID, scope, s.AccessTokenTTL, now))
	if err != nil {
		return nil, err
	}

	atHash := cryptox.AccessTokenHash(accessToken)
	idToken, err := s.Signer.Sign(jwtx.NewIDClaims(
		s.Issuer, txn.PartnerSpecificUserToken, txn.ClientID,
		txn.Nonce, txn.MatchedACR, atHash,
		txn.AuthTimeInSeconds, s.AccessTokenTTL, now))
	if err != nil {
		return nil, err
	}

	exchange, err := s.Auth.KycExchange(ctx, txn.RelyingPartyID, txn.ClientID,
		txn.AuthTransactionID, txn.KycToken, txn.IndividualID,
		txn.AcceptedClaims, txn.PermittedScopes)
	if err != nil {
		log.Warn("kyc exchange failed", "transaction_id", txn.TransactionID, "err", err)
		return nil, err
	}

	txn.AccessTokenHash = atHash
	txn.EncryptedKyc = exchange.EncryptedKyc
	err = s.Store.Promote(ctx, store.StageAuthCode, store.StageUserinfo,
		codeHash, atHash, txn)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	log.Info("authorization code redeemed",
		"transaction_id", txn.TransactionID,
		"client_id", txn.ClientID,
	)
	return &idpsdk.TokenResponse{
		AccessToken: accessToken,
		IDToken:     idToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.AccessTokenTTL.Seconds()),
	}, nil
}

// UserInfo returns the released subject data for a bearer access token.
// The stage entry is keyed by the token's at_hash and read without
// consuming it, so repeated calls succeed until the entry expires.
func (s *TokenService) UserInfo(ctx context.Context, accessToken string) (string, error) {
	if _, err := s.Verifier.VerifyAccessToken(accessToken); err != nil {
		return "", ErrInvalidToken
	}

	txn, err := s.Store.Get(ctx, store.StageUserinfo, cryptox.AccessTokenHash(accessToken))
	if err != nil {
		return "", ErrInvalidToken
	}
	return txn.EncryptedKyc, nil
}

// verifyPKCE checks the code verifier against the challenge captured at
// authorize time. A transaction without a challenge skips the check.
func verifyPKCE(challenge, method, verifier string) error {
	if challenge == "" {
		return nil
	}
	if verifier == "" {
		return ErrPKCEFailed
	}

	switch method {
	case "plain":
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) != 1 {
			return ErrPKCEFailed
		}
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) != 1 {
			return ErrPKCEFailed
		}
	default:
		return ErrUnsupportedPKCEMethod
	}
	return nil
}
