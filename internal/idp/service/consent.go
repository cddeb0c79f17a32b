package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/pkg/cryptox"
	"github.com/openauthority/idp/pkg/slogx"
)

// ConsentService decides whether a transaction needs a fresh consent
// screen and persists the outcome once the user has been through one.
type ConsentService struct {
	Store ConsentStore
}

// Decide sets the transaction's consent action after authentication.
// NOCAPTURE is only chosen when it is provably safe: either nothing
// consent-worthy was requested at all, or a stored record fully covers
// every requested scope and every essential claim at equal or stronger
// verification. Anything less falls back to CAPTURE.
func (s *ConsentService) Decide(ctx context.Context, txn *domain.Transaction) error {
	log := slogx.FromContext(ctx)

	if !txn.ResolvedClaims.HasUserinfoClaims() && len(txn.RequestedAuthorizeScopes) == 0 {
		txn.ConsentAction = domain.ConsentActionNoCapture
		txn.AcceptedClaims = nil
		txn.PermittedScopes = nil
		return nil
	}

	rec, err := s.Store.GetConsent(ctx, txn.ClientID, txn.PartnerSpecificUserToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			txn.ConsentAction = domain.ConsentActionCapture
			return nil
		}
		return err
	}

	if !s.covers(rec, txn) {
		log.Debug("stored consent does not cover transaction, capturing again",
			"client_id", txn.ClientID)
		txn.ConsentAction = domain.ConsentActionCapture
		return nil
	}

	txn.ConsentAction = domain.ConsentActionNoCapture
	txn.AcceptedClaims = rec.AcceptedClaims()
	txn.PermittedScopes = rec.PermittedScopes()
	return nil
}

func (s *ConsentService) covers(rec *domain.ConsentRecord, txn *domain.Transaction) bool {
	if !rec.CoversScopes(txn.RequestedAuthorizeScopes) {
		return false
	}
	for name, detail := range txn.ResolvedClaims.Userinfo {
		if !detail.Essential {
			continue
		}
		if !rec.CoversClaim(name, detail) {
			return false
		}
	}
	return true
}

// ValidateSubmission checks a captured consent submission against what
// the transaction actually requested. Every essential claim must be
// accepted, nothing outside the requested claim set may be accepted,
// and permitted scopes must be a non-empty subset of the requested
// authorize scopes whenever any were requested.
func (s *ConsentService) ValidateSubmission(
	txn *domain.Transaction,
	acceptedClaims, permittedScopes []string,
) error {
	if !txn.ResolvedClaims.HasUserinfoClaims() && len(acceptedClaims) > 0 {
		return ErrInvalidAcceptedClaim
	}

	requested := make(map[string]bool, len(txn.ResolvedClaims.Userinfo))
	for name := range txn.ResolvedClaims.Userinfo {
		requested[name] = true
	}

	for name, detail := range txn.ResolvedClaims.Userinfo {
		if detail.Essential && !slices.Contains(acceptedClaims, name) {
			return ErrInvalidAcceptedClaim
		}
	}
	for _, name := range acceptedClaims {
		if !requested[name] {
			return ErrInvalidAcceptedClaim
		}
	}

	for _, scope := range permittedScopes {
		if !slices.Contains(txn.RequestedAuthorizeScopes, scope) {
			return ErrInvalidPermittedScope
		}
	}
	if len(txn.RequestedAuthorizeScopes) > 0 && len(permittedScopes) == 0 {
		return ErrInvalidPermittedScope
	}

	return nil
}

// Persist saves or clears the durable consent record after the consent
// step completes. A CAPTURE outcome writes a fresh record; a NOCAPTURE
// outcome for a transaction that requested nothing clears any stale
// record so it cannot shadow a future request.
func (s *ConsentService) Persist(ctx context.Context, txn *domain.Transaction) error {
	if txn.ConsentAction == domain.ConsentActionNoCapture {
		if !txn.ResolvedClaims.HasUserinfoClaims() && len(txn.RequestedAuthorizeScopes) == 0 {
			err := s.Store.DeleteConsent(ctx, txn.ClientID, txn.PartnerSpecificUserToken)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		return nil
	}

	rec := &domain.ConsentRecord{
		ClientID:      txn.ClientID,
		PSUToken:      txn.PartnerSpecificUserToken,
		GrantedClaims: make(map[string]domain.ClaimDetail, len(txn.AcceptedClaims)),
		GrantedScopes: make(map[string]bool, len(txn.RequestedAuthorizeScopes)),
	}
	for _, name := range txn.AcceptedClaims {
		rec.GrantedClaims[name] = txn.ResolvedClaims.Userinfo[name]
	}
	for _, scope := range txn.RequestedAuthorizeScopes {
		rec.GrantedScopes[scope] = slices.Contains(txn.PermittedScopes, scope)
	}
	rec.Signature = signConsent(rec)

	return s.Store.SaveConsent(ctx, rec)
}

// signConsent fingerprints the granted payload so tampering with a
// stored record is detectable on read.
func signConsent(rec *domain.ConsentRecord) string {
	payload, _ := json.Marshal(struct {
		ClientID string                        `json:"client_id"`
		PSUToken string                        `json:"psu_token"`
		Claims   map[string]domain.ClaimDetail `json:"claims"`
		Scopes   map[string]bool               `json:"scopes"`
	}{rec.ClientID, rec.PSUToken, rec.GrantedClaims, rec.GrantedScopes})
	return cryptox.HashSHA3(string(payload))
}
