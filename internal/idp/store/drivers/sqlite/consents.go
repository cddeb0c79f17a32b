package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/store"
)

// ConsentsRepo persists durable consent records keyed by client and
// partner-specific user token. Granted claims and scopes are structured
// values, stored as JSON.
type ConsentsRepo struct {
	db *sql.DB
}

func (r *ConsentsRepo) GetConsent(ctx context.Context, clientID, psuToken string) (*domain.ConsentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT client_id, psu_token, granted_claims, granted_scopes, signature
		FROM consents WHERE client_id = ? AND psu_token = ?`, clientID, psuToken)

	var rec domain.ConsentRecord
	var grantedClaims, grantedScopes []byte
	err := row.Scan(&rec.ClientID, &rec.PSUToken, &grantedClaims, &grantedScopes, &rec.Signature)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if err := json.Unmarshal(grantedClaims, &rec.GrantedClaims); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal granted claims: %w", err)
	}
	if err := json.Unmarshal(grantedScopes, &rec.GrantedScopes); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal granted scopes: %w", err)
	}
	return &rec, nil
}

// SaveConsent upserts the record; a user re-consenting to the same
// client replaces their previous grant.
func (r *ConsentsRepo) SaveConsent(ctx context.Context, rec *domain.ConsentRecord) error {
	grantedClaims, err := json.Marshal(rec.GrantedClaims)
	if err != nil {
		return fmt.Errorf("sqlite: marshal granted claims: %w", err)
	}
	grantedScopes, err := json.Marshal(rec.GrantedScopes)
	if err != nil {
		return fmt.Errorf("sqlite: marshal granted scopes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO consents (client_id, psu_token, granted_claims, granted_scopes, signature)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (client_id, psu_token) DO UPDATE SET
			granted_claims = excluded.granted_claims,
			granted_scopes = excluded.granted_scopes,
			signature = excluded.signature,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ClientID, rec.PSUToken, grantedClaims, grantedScopes, rec.Signature)
	return err
}

func (r *ConsentsRepo) DeleteConsent(ctx context.Context, clientID, psuToken string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM consents WHERE client_id = ? AND psu_token = ?`, clientID, psuToken)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
