package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/internal/idp/store/memory"
	"github.com/openauthority/idp/internal/idp/waiter"
	"github.com/openauthority/idp/pkg/idpsdk"
	"github.com/openauthority/idp/pkg/jwtx"
)

// fakeClients is an in-memory ClientRegistry.
type fakeClients struct {
	clients map[string]*domain.Client
}

func (f *fakeClients) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	c, ok := f.clients[clientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// stubCatalog maps ACRs to fixed factor combinations.
type stubCatalog struct {
	combos map[string][][]domain.AuthFactor
}

func (s *stubCatalog) AuthFactors(_ context.Context, acrValues []string) ([][]domain.AuthFactor, error) {
	var out [][]domain.AuthFactor
	for _, acr := range acrValues {
		out = append(out, s.combos[acr]...)
	}
	return out, nil
}

// memConsents is an in-memory ConsentStore.
type memConsents struct {
	recs map[string]*domain.ConsentRecord
}

func newMemConsents() *memConsents {
	return &memConsents{recs: make(map[string]*domain.ConsentRecord)}
}

func (m *memConsents) key(clientID, psuToken string) string { return clientID + "|" + psuToken }

func (m *memConsents) GetConsent(_ context.Context, clientID, psuToken string) (*domain.ConsentRecord, error) {
	rec, ok := m.recs[m.key(clientID, psuToken)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (m *memConsents) SaveConsent(_ context.Context, rec *domain.ConsentRecord) error {
	m.recs[m.key(rec.ClientID, rec.PSUToken)] = rec
	return nil
}

func (m *memConsents) DeleteConsent(_ context.Context, clientID, psuToken string) error {
	k := m.key(clientID, psuToken)
	if _, ok := m.recs[k]; !ok {
		return store.ErrNotFound
	}
	delete(m.recs, k)
	return nil
}

// fakeAuth passes any challenge whose value is "good".
type fakeAuth struct {
	failOtp      bool
	failExchange bool
	otpChannels  []string
}

func (f *fakeAuth) SendOtp(_ context.Context, _, _ string, authTransactionID, individualID string, otpChannels []string) (*SendOtpResult, error) {
	if f.failOtp {
		return nil, errors.New("delivery down")
	}
	f.otpChannels = otpChannels
	return &SendOtpResult{
		TransactionID: authTransactionID,
		MaskedEmail:   "ma***@example.com",
	}, nil
}

func (f *fakeAuth) KycAuth(_ context.Context, _, _ string, _, individualID string, challenges []domain.AuthChallenge) (*KycAuthResult, error) {
	for _, c := range challenges {
		if c.Challenge != "good" {
			return nil, errors.New("challenge rejected")
		}
	}
	return &KycAuthResult{
		KycToken:                 "kyc-" + individualID,
		PartnerSpecificUserToken: "psu-" + individualID,
	}, nil
}

func (f *fakeAuth) KycExchange(_ context.Context, _, _ string, _, kycToken, individualID string, _, _ []string) (*KycExchangeResult, error) {
	if f.failExchange {
		return nil, errors.New("exchange down")
	}
	if kycToken != "kyc-"+individualID {
		return nil, errors.New("kyc token mismatch")
	}
	return &KycExchangeResult{EncryptedKyc: "payload-" + individualID}, nil
}

// testEnv wires the full service stack over in-memory backends.
type testEnv struct {
	txns     *store.Transactions
	codes    *store.LinkCodes
	consents *memConsents
	auth     *fakeAuth
	signer   *jwtx.EdDSASigner

	authorize *AuthorizeService
	linked    *LinkedService
	token     *TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	kv := memory.New(time.Minute, memory.WithJanitorInterval(0))
	t.Cleanup(func() { _ = kv.Close() })

	txns := store.NewTransactions(kv)
	codes := store.NewLinkCodes(kv)
	consents := newMemConsents()
	auth := &fakeAuth{}

	clients := &fakeClients{clients: map[string]*domain.Client{
		"client-1": {
			ID:             "client-1",
			Name:           "Test Wallet",
			LogoURI:        "https://rp.example.com/logo.png",
			RelyingPartyID: "rp-1",
			RedirectURIs:   []string{"https://rp.example.com/cb", "https://rp.example.com/dev/*"},
			Claims:         []string{"name", "birthdate", "email"},
			ACRValues:      []string{"acr:otp", "acr:bio"},
			Status:         domain.ClientStatusActive,
		},
		"client-suspended": {
			ID:     "client-suspended",
			Status: "SUSPENDED",
		},
	}}

	catalog := &stubCatalog{combos: map[string][][]domain.AuthFactor{
		"acr:otp":     {{{Type: "OTP"}}},
		"acr:bio":     {{{Type: "BIO", Count: 1}}},
		"acr:pwd-otp": {{{Type: "PWD"}, {Type: "OTP"}}},
	}}

	resolver := &ClaimsResolver{
		ScopeClaims: map[string][]string{
			"profile": {"name", "birthdate"},
			"email":   {"email"},
		},
		Catalog: catalog,
	}
	consent := &ConsentService{Store: consents}

	signer, err := jwtx.NewEphemeralSignerEdDSA("test-key")
	require.NoError(t, err)

	env := &testEnv{
		txns:     txns,
		codes:    codes,
		consents: consents,
		auth:     auth,
		signer:   signer,
	}
	env.authorize = &AuthorizeService{
		Clients:               clients,
		Store:                 txns,
		Resolver:              resolver,
		Consent:               consent,
		Auth:                  auth,
		AuthorizeScopes:       []string{"wallet.read", "wallet.pay"},
		AuthTxnIDLength:       10,
		LinkCodeLimit:         3,
		LinkCodeQueueCapacity: 2,
	}
	env.linked = &LinkedService{
		Clients:         clients,
		Store:           txns,
		Codes:           codes,
		Resolver:        resolver,
		Consent:         consent,
		Auth:            auth,
		StatusWaiters:   waiter.NewRegistry[string](),
		AuthCodeWaiters: waiter.NewRegistry[string](),
		LinkCodeLength:  6,
		LinkCodeTTL:     time.Minute,
		PollTimeout:     200 * time.Millisecond,
	}
	env.token = &TokenService{
		Store:          txns,
		Auth:           auth,
		Signer:         signer,
		Verifier:       signer.Verifier("test-issuer"),
		Issuer:         "test-issuer",
		AccessTokenTTL: 15 * time.Minute,
	}
	return env
}

func detailRequest() *idpsdk.OAuthDetailRequest {
	return &idpsdk.OAuthDetailRequest{
		ClientID:     "client-1",
		ResponseType: "code",
		Scope:        "openid profile",
		RedirectURI:  "https://rp.example.com/cb",
		Nonce:        "nonce-1",
		State:        "state-1",
	}
}

func otpChallenge() []idpsdk.AuthChallenge {
	return []idpsdk.AuthChallenge{{AuthFactorType: "OTP", Challenge: "good", Format: "alpha-numeric"}}
}

// startTransaction runs oauth-details and returns the transaction id.
func startTransaction(t *testing.T, env *testEnv, req *idpsdk.OAuthDetailRequest) string {
	t.Helper()
	resp, err := env.authorize.GetOauthDetails(context.Background(), req)
	require.NoError(t, err)
	return resp.TransactionID
}

// authenticateTransaction drives a started transaction through the OTP
// factor.
func authenticateTransaction(t *testing.T, env *testEnv, txnID string) *idpsdk.AuthResponse {
	t.Helper()
	resp, err := env.authorize.Authenticate(context.Background(), &idpsdk.AuthRequest{
		TransactionID: txnID,
		IndividualID:  "ind-1",
		Challenges:    otpChallenge(),
	})
	require.NoError(t, err)
	return resp
}
