// Package authenticator provides the built-in identity verification
// backend. It keeps a seeded in-memory directory of individuals and
// verifies OTP challenges with TOTP, which makes it suitable for
// development and integration testing against the real flow surface.
package authenticator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pquerna/otp/totp"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/pkg/cryptox"
)

var (
	ErrUnknownIndividual = errors.New("authenticator: unknown individual")
	ErrChallengeFailed   = errors.New("authenticator: challenge failed")
	ErrInvalidKycToken   = errors.New("authenticator: invalid kyc token")
)

// Identity is a directory entry the backend can authenticate.
type Identity struct {
	IndividualID string
	Email        string
	Phone        string
	Password     string
	PIN          string

	// Claims holds the releasable claim values, keyed by claim name.
	Claims map[string]any
}

type kycGrant struct {
	individualID string
	psuToken     string
}

// Directory implements the identity backend over an in-memory seeded
// set of identities.
type Directory struct {
	issuer string
	pepper string

	mu         sync.Mutex
	identities map[string]*Identity
	otpSecrets map[string]string
	kycGrants  map[string]kycGrant
}

// New returns an empty directory. The issuer labels generated TOTP
// secrets; the pepper makes partner-specific user tokens deployment
// unique.
func New(issuer, pepper string) *Directory {
	return &Directory{
		issuer:     issuer,
		pepper:     pepper,
		identities: make(map[string]*Identity),
		otpSecrets: make(map[string]string),
		kycGrants:  make(map[string]kycGrant),
	}
}

// Seed registers identities, replacing entries with the same id.
func (d *Directory) Seed(identities ...*Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range identities {
		d.identities[id.IndividualID] = id
	}
}

// SendOtp provisions a TOTP secret for the auth transaction and reports
// the masked delivery channels. There is no real delivery; tests read
// the secret back with OtpSecret.
func (d *Directory) SendOtp(
	_ context.Context,
	_, _ string,
	authTransactionID, individualID string,
	otpChannels []string,
) (*service.SendOtpResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	identity, ok := d.identities[individualID]
	if !ok {
		return nil, ErrUnknownIndividual
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      d.issuer,
		AccountName: individualID,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticator: generate otp secret: %w", err)
	}
	d.otpSecrets[otpKey(authTransactionID, individualID)] = key.Secret()

	result := &service.SendOtpResult{TransactionID: authTransactionID}
	for _, channel := range otpChannels {
		switch strings.ToLower(channel) {
		case "email":
			result.MaskedEmail = maskEmail(identity.Email)
		case "phone", "mobile":
			result.MaskedMobile = maskPhone(identity.Phone)
		}
	}
	return result, nil
}

// OtpSecret returns the TOTP secret provisioned for an auth
// transaction. Test hook.
func (d *Directory) OtpSecret(authTransactionID, individualID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	secret, ok := d.otpSecrets[otpKey(authTransactionID, individualID)]
	return secret, ok
}

// KycAuth verifies every submitted challenge and mints the kyc token
// and partner-specific user token. All challenges must pass.
func (d *Directory) KycAuth(
	_ context.Context,
	relyingPartyID, _ string,
	authTransactionID, individualID string,
	challenges []domain.AuthChallenge,
) (*service.KycAuthResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	identity, ok := d.identities[individualID]
	if !ok {
		return nil, ErrUnknownIndividual
	}
	if len(challenges) == 0 {
		return nil, ErrChallengeFailed
	}

	for _, c := range challenges {
		if !d.verifyChallenge(identity, authTransactionID, c) {
			return nil, ErrChallengeFailed
		}
	}

	kycToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	psuToken := d.psuToken(individualID, relyingPartyID)
	d.kycGrants[kycToken] = kycGrant{individualID: individualID, psuToken: psuToken}

	return &service.KycAuthResult{
		KycToken:                 kycToken,
		PartnerSpecificUserToken: psuToken,
	}, nil
}

// KycExchange releases the accepted claim values for a previously
// minted kyc token. The payload is the claim set serialized to JSON and
// base64 encoded.
func (d *Directory) KycExchange(
	_ context.Context,
	relyingPartyID, _ string,
	_, kycToken, individualID string,
	acceptedClaims, _ []string,
) (*service.KycExchangeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	grant, ok := d.kycGrants[kycToken]
	if !ok || grant.individualID != individualID {
		return nil, ErrInvalidKycToken
	}
	delete(d.kycGrants, kycToken)

	identity := d.identities[individualID]
	if identity == nil {
		return nil, ErrUnknownIndividual
	}

	payload := map[string]any{"sub": grant.psuToken}
	for _, name := range acceptedClaims {
		if v, ok := identity.Claims[name]; ok {
			payload[name] = v
		}
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("authenticator: marshal kyc payload: %w", err)
	}
	return &service.KycExchangeResult{
		EncryptedKyc: base64.StdEncoding.EncodeToString(buf),
	}, nil
}

func (d *Directory) verifyChallenge(identity *Identity, authTransactionID string, c domain.AuthChallenge) bool {
	switch strings.ToUpper(c.AuthFactorType) {
	case "OTP":
		secret, ok := d.otpSecrets[otpKey(authTransactionID, identity.IndividualID)]
		if !ok {
			return false
		}
		return totp.Validate(c.Challenge, secret)
	case "PWD":
		return identity.Password != "" && c.Challenge == identity.Password
	case "PIN":
		return identity.PIN != "" && c.Challenge == identity.PIN
	case "BIO", "WLA":
		// Dev backend has no matcher; any non-empty capture passes.
		return c.Challenge != ""
	default:
		return false
	}
}

// psuToken derives a stable pairwise subject for (individual, relying
// party) without exposing the individual id.
func (d *Directory) psuToken(individualID, relyingPartyID string) string {
	return cryptox.HashSHA3(individualID + ":" + relyingPartyID + ":" + d.pepper)
}

func otpKey(authTransactionID, individualID string) string {
	return authTransactionID + ":" + individualID
}

func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.IndexByte(email, '@')
	if at <= 2 {
		return "**" + email[max(at, 0):]
	}
	return email[:2] + strings.Repeat("*", at-2) + email[at:]
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// SeedDefaults loads a small development dataset.
func (d *Directory) SeedDefaults() {
	d.Seed(
		&Identity{
			IndividualID: "8267411571",
			Email:        "maria.oliveira@example.com",
			Phone:        "+61412555184",
			Password:     "correct-horse-battery",
			PIN:          "482913",
			Claims: map[string]any{
				"name":       "Maria Oliveira",
				"given_name": "Maria",
				"birthdate":  "1992-04-17",
				"email":      "maria.oliveira@example.com",
				"phone":      "+61412555184",
				"address":    map[string]any{"locality": "Melbourne", "country": "AU"},
			},
		},
		&Identity{
			IndividualID: "5149807362",
			Email:        "tom.nguyen@example.com",
			Phone:        "+61498222730",
			Password:     "hunter2hunter2",
			PIN:          "104476",
			Claims: map[string]any{
				"name":      "Tom Nguyen",
				"birthdate": "1985-11-02",
				"email":     "tom.nguyen@example.com",
				"phone":     "+61498222730",
			},
		},
	)
}
