package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/internal/idp/waiter"
	"github.com/openauthority/idp/pkg/cryptox"
	"github.com/openauthority/idp/pkg/idpsdk"
	"github.com/openauthority/idp/pkg/idx"
	"github.com/openauthority/idp/pkg/slogx"
)

// LinkedService drives the cross-device flow: the origin device issues
// human-readable link codes and long-polls for progress while the
// secondary device claims the code and runs authentication and consent.
type LinkedService struct {
	Clients  ClientRegistry
	Store    *store.Transactions
	Codes    *store.LinkCodes
	Resolver *ClaimsResolver
	Consent  *ConsentService
	Auth     Authenticator

	// StatusWaiters parks link-status polls keyed by link code hash;
	// AuthCodeWaiters parks link-auth-code polls keyed by the origin
	// transaction id.
	StatusWaiters   *waiter.Registry[string]
	AuthCodeWaiters *waiter.Registry[string]

	// LinkCodeLength is the number of characters in a generated code;
	// LinkCodeTTL is how long a code stays claimable.
	LinkCodeLength int
	LinkCodeTTL    time.Duration

	// PollTimeout bounds how long the long-poll endpoints park a
	// request before reporting a timeout.
	PollTimeout time.Duration

	// genMu serializes link code generation; the budget decrement is a
	// read-modify-write on the pre-auth entry and concurrent calls
	// must not overdraw it.
	genMu sync.Mutex
}

// GenerateLinkCode issues a fresh link code for a pending transaction.
// Each transaction carries a finite generation budget; a hash collision
// with a live code is retried exactly once before failing.
func (s *LinkedService) GenerateLinkCode(ctx context.Context, req *idpsdk.LinkCodeRequest) (*idpsdk.LinkCodeResponse, error) {
	log := slogx.FromContext(ctx)

	s.genMu.Lock()
	defer s.genMu.Unlock()

	txn, err := s.Store.Get(ctx, store.StagePreAuth, req.TransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}
	if txn.CurrentLinkCodeLimit <= 0 {
		return nil, ErrLinkCodeLimitReached
	}

	expiresAt := time.Now().Add(s.LinkCodeTTL)
	meta := &domain.LinkCodeMetadata{
		TransactionID:      req.TransactionID,
		ExpireEpochSeconds: expiresAt.Unix(),
	}

	var code, codeHash string
	for attempt := 0; attempt < 2; attempt++ {
		code, err = cryptox.GenerateLinkCode(s.LinkCodeLength)
		if err != nil {
			return nil, ErrLinkCodeGenFailed
		}
		codeHash = cryptox.HashSHA3(code)

		err = s.Codes.Put(ctx, codeHash, meta)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, err
		}
	}
	if err != nil {
		log.Warn("link code generation exhausted retries", "transaction_id", req.TransactionID)
		return nil, ErrLinkCodeGenFailed
	}

	// Queue eviction only trims the recency window; evicted codes stay
	// claimable until their TTL lapses.
	txn.CurrentLinkCodeLimit--
	if txn.LinkCodeQueue == nil {
		txn.LinkCodeQueue = domain.NewLinkCodeQueue(1)
	}
	txn.LinkCodeQueue.Push(codeHash)

	if err := s.Store.Update(ctx, store.StagePreAuth, req.TransactionID, txn); err != nil {
		return nil, ErrInvalidTransaction
	}

	log.Info("link code generated",
		"transaction_id", req.TransactionID,
		"remaining_limit", txn.CurrentLinkCodeLimit,
	)
	return &idpsdk.LinkCodeResponse{
		TransactionID:  req.TransactionID,
		LinkCode:       code,
		ExpireDateTime: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// LinkTransaction claims a link code from the secondary device. The
// origin transaction moves to the linked-session stage under a new
// linked transaction id, and any parked link-status poll is released.
func (s *LinkedService) LinkTransaction(ctx context.Context, req *idpsdk.LinkTransactionRequest) (*idpsdk.LinkTransactionResponse, error) {
	log := slogx.FromContext(ctx)

	codeHash := cryptox.HashSHA3(req.LinkCode)
	meta, err := s.Codes.Get(ctx, codeHash)
	if err != nil {
		return nil, ErrInvalidLinkCode
	}
	if meta.IsLinked() {
		return nil, ErrInvalidLinkCode
	}

	txn, err := s.Store.Get(ctx, store.StagePreAuth, meta.TransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	client, err := s.Clients.GetClient(ctx, txn.ClientID)
	if err != nil {
		return nil, ErrInvalidClient
	}
	combos, err := s.Resolver.AuthFactors(ctx, txn.RequestedACRValues)
	if err != nil {
		return nil, err
	}

	linkTxnID := idx.New().String()
	meta.LinkedTransactionID = linkTxnID
	if err := s.Codes.Update(ctx, codeHash, meta); err != nil {
		return nil, ErrInvalidLinkCode
	}

	txn.LinkedTransactionID = linkTxnID
	txn.LinkedCodeHash = codeHash
	err = s.Store.Promote(ctx, store.StagePreAuth, store.StageLinkedSession,
		meta.TransactionID, linkTxnID, txn)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	s.StatusWaiters.Signal(codeHash, linkTxnID)

	log.Info("transaction linked",
		"transaction_id", meta.TransactionID,
		"link_transaction_id", linkTxnID,
	)
	return &idpsdk.LinkTransactionResponse{
		LinkTransactionID: linkTxnID,
		AuthFactors:       toSDKFactors(combos),
		EssentialClaims:   txn.EssentialClaims,
		VoluntaryClaims:   txn.VoluntaryClaims,
		AuthorizeScopes:   txn.RequestedAuthorizeScopes,
		ClientName:        client.Name,
		LogoURL:           client.LogoURI,
	}, nil
}

// LinkedSendOtp dispatches an OTP within a linked session.
func (s *LinkedService) LinkedSendOtp(ctx context.Context, req *idpsdk.LinkedOtpRequest) (*idpsdk.OtpResponse, error) {
	txn, err := s.Store.Get(ctx, store.StageLinkedSession, req.LinkTransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	resp, err := sendOtp(ctx, s.Auth, txn, req.IndividualID, req.OtpChannels)
	if err != nil {
		return nil, err
	}
	resp.TransactionID = req.LinkTransactionID
	return resp, nil
}

// LinkedAuthenticate verifies challenges on the secondary device and
// promotes the linked session to the linked-authenticated stage.
func (s *LinkedService) LinkedAuthenticate(ctx context.Context, req *idpsdk.LinkedAuthRequest) (*idpsdk.LinkedAuthResponse, error) {
	log := slogx.FromContext(ctx)

	txn, err := s.Store.Get(ctx, store.StageLinkedSession, req.LinkTransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	if err := authenticate(ctx, s.Auth, s.Resolver, s.Consent, txn, req.IndividualID, toDomainChallenges(req.Challenges)); err != nil {
		return nil, err
	}

	err = s.Store.Promote(ctx, store.StageLinkedSession, store.StageLinkedAuthenticated,
		req.LinkTransactionID, req.LinkTransactionID, txn)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	log.Info("linked transaction authenticated",
		"link_transaction_id", req.LinkTransactionID,
		"acr", txn.MatchedACR,
		"consent_action", txn.ConsentAction,
	)
	return &idpsdk.LinkedAuthResponse{
		LinkTransactionID: req.LinkTransactionID,
		ConsentAction:     string(txn.ConsentAction),
	}, nil
}

// LinkedConsent records consent on the secondary device, bridges the
// completed transaction back under the origin transaction id and
// releases any parked link-auth-code poll.
func (s *LinkedService) LinkedConsent(ctx context.Context, req *idpsdk.LinkedConsentRequest) (*idpsdk.LinkedConsentResponse, error) {
	log := slogx.FromContext(ctx)

	txn, err := s.Store.Get(ctx, store.StageLinkedAuthenticated, req.LinkTransactionID)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	if txn.ConsentAction == domain.ConsentActionCapture {
		if err := s.Consent.ValidateSubmission(txn, req.AcceptedClaims, req.PermittedScopes); err != nil {
			return nil, err
		}
		txn.AcceptedClaims = req.AcceptedClaims
		txn.PermittedScopes = req.PermittedScopes
	}

	if err := s.Consent.Persist(ctx, txn); err != nil {
		return nil, err
	}

	err = s.Store.Promote(ctx, store.StageLinkedAuthenticated, store.StageLinkedConsented,
		req.LinkTransactionID, req.LinkTransactionID, txn)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	// The bridge entry is keyed by the origin transaction id so the
	// origin device's poll can redeem it without knowing the linked id.
	if err := s.Store.Copy(ctx, store.StageConsented, txn.TransactionID, txn); err != nil {
		return nil, err
	}
	s.AuthCodeWaiters.Signal(txn.TransactionID, req.LinkTransactionID)

	log.Info("linked consent recorded",
		"transaction_id", txn.TransactionID,
		"link_transaction_id", req.LinkTransactionID,
	)
	return &idpsdk.LinkedConsentResponse{LinkTransactionID: req.LinkTransactionID}, nil
}

// GetLinkStatus long-polls until the given code is claimed by a
// secondary device, or times out.
func (s *LinkedService) GetLinkStatus(ctx context.Context, req *idpsdk.LinkStatusRequest) (*idpsdk.LinkStatusResponse, error) {
	codeHash := cryptox.HashSHA3(req.LinkCode)
	meta, err := s.Codes.Get(ctx, codeHash)
	if err != nil {
		return nil, ErrInvalidLinkCode
	}
	if meta.TransactionID != req.TransactionID {
		return nil, ErrInvalidLinkCode
	}
	if meta.IsLinked() {
		return linkedStatus(req.TransactionID), nil
	}

	// Register before re-checking so a claim that lands between the two
	// reads still signals this waiter.
	handle := s.StatusWaiters.Register(codeHash)
	meta, err = s.Codes.Get(ctx, codeHash)
	if err == nil && meta.IsLinked() {
		handle.Discard()
		return linkedStatus(req.TransactionID), nil
	}

	if _, err := handle.Wait(ctx, s.PollTimeout); err != nil {
		return nil, pollError(err)
	}
	return linkedStatus(req.TransactionID), nil
}

// GetLinkAuthCode long-polls until linked consent completes, then
// issues the single-use authorization code for the origin transaction.
// A code that was never claimed by a secondary device fails immediately
// rather than burning the poll window.
func (s *LinkedService) GetLinkAuthCode(ctx context.Context, req *idpsdk.LinkAuthCodeRequest) (*idpsdk.AuthCodeResponse, error) {
	log := slogx.FromContext(ctx)

	codeHash := cryptox.HashSHA3(req.LinkedCode)
	meta, err := s.Codes.Get(ctx, codeHash)
	if err != nil {
		return nil, ErrInvalidLinkCode
	}
	if meta.TransactionID != req.TransactionID || !meta.IsLinked() {
		return nil, ErrInvalidLinkCode
	}

	txn, err := s.Store.Get(ctx, store.StageConsented, req.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		handle := s.AuthCodeWaiters.Register(req.TransactionID)

		txn, err = s.Store.Get(ctx, store.StageConsented, req.TransactionID)
		if errors.Is(err, store.ErrNotFound) {
			if _, werr := handle.Wait(ctx, s.PollTimeout); werr != nil {
				return nil, pollError(werr)
			}
			txn, err = s.Store.Get(ctx, store.StageConsented, req.TransactionID)
		} else {
			handle.Discard()
		}
	}
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	if codeHash != txn.LinkedCodeHash {
		return nil, ErrInvalidLinkCode
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	txn.CodeHash = cryptox.HashSHA3(code)

	err = s.Store.Promote(ctx, store.StageConsented, store.StageAuthCode,
		req.TransactionID, txn.CodeHash, txn)
	if err != nil {
		return nil, ErrInvalidTransaction
	}

	log.Info("authorization code issued for linked flow", "transaction_id", req.TransactionID)
	return &idpsdk.AuthCodeResponse{
		Code:        code,
		State:       txn.State,
		Nonce:       txn.Nonce,
		RedirectURI: txn.RedirectURI,
	}, nil
}

func linkedStatus(transactionID string) *idpsdk.LinkStatusResponse {
	return &idpsdk.LinkStatusResponse{
		TransactionID: transactionID,
		LinkStatus:    idpsdk.LinkStatusLinked,
	}
}

// pollError maps waiter outcomes onto service errors; caller
// cancellation propagates as-is so transports can tell it apart.
func pollError(err error) error {
	if errors.Is(err, waiter.ErrTimeout) {
		return ErrResponseTimeout
	}
	return err
}
