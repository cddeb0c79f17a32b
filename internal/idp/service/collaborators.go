package service

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openauthority/idp/internal/idp/domain"
)

// ClientRegistry resolves registered client applications.
type ClientRegistry interface {
	// GetClient returns the client or store.ErrNotFound.
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)
}

// FactorCatalog maps ACR values to the authentication factor
// combinations that satisfy them.
type FactorCatalog interface {
	// AuthFactors returns one factor combination per satisfying AMR,
	// in the order of the given ACR values. Unknown ACRs contribute
	// nothing.
	AuthFactors(ctx context.Context, acrValues []string) ([][]domain.AuthFactor, error)
}

// ConsentStore persists durable user consent decisions.
type ConsentStore interface {
	// GetConsent returns the stored record or store.ErrNotFound.
	GetConsent(ctx context.Context, clientID, psuToken string) (*domain.ConsentRecord, error)
	SaveConsent(ctx context.Context, rec *domain.ConsentRecord) error
	DeleteConsent(ctx context.Context, clientID, psuToken string) error
}

// SendOtpResult is the authenticator's response to an OTP dispatch.
type SendOtpResult struct {
	TransactionID string
	MaskedEmail   string
	MaskedMobile  string
}

// KycAuthResult carries the tokens minted by a successful verification.
type KycAuthResult struct {
	KycToken                 string
	PartnerSpecificUserToken string
}

// KycExchangeResult carries the user data payload released after token
// exchange.
type KycExchangeResult struct {
	EncryptedKyc string
}

// Authenticator is the identity-verification backend. Calls can be slow
// (remote OTP delivery, biometric checks) and must never be made while
// holding store locks.
type Authenticator interface {
	SendOtp(ctx context.Context, relyingPartyID, clientID string,
		authTransactionID, individualID string, otpChannels []string) (*SendOtpResult, error)

	KycAuth(ctx context.Context, relyingPartyID, clientID string,
		authTransactionID, individualID string, challenges []domain.AuthChallenge) (*KycAuthResult, error)

	KycExchange(ctx context.Context, relyingPartyID, clientID string,
		authTransactionID, kycToken, individualID string,
		acceptedClaims, permittedScopes []string) (*KycExchangeResult, error)
}

// TokenSigner signs issued JWTs.
type TokenSigner interface {
	Sign(claims jwt.Claims) (string, error)
}
