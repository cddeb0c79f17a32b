package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openauthority/idp/internal/idp/domain"
)

// ClientsRepo implements the client registry over SQLite.
type ClientsRepo struct {
	db *sql.DB
}

func (r *ClientsRepo) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, logo_uri, relying_party_id, redirect_uris, claims, acr_values, status
		FROM clients WHERE id = ?`, id)

	var c domain.Client
	var redirectURIs, claims, acrValues string
	err := row.Scan(&c.ID, &c.Name, &c.LogoURI, &c.RelyingPartyID,
		&redirectURIs, &claims, &acrValues, &c.Status)
	if err != nil {
		return nil, mapNotFound(err)
	}

	c.RedirectURIs = splitAndFilter(redirectURIs)
	c.Claims = splitAndFilter(claims)
	c.ACRValues = splitAndFilter(acrValues)
	return &c, nil
}

func (r *ClientsRepo) ListClients(ctx context.Context) ([]*domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, logo_uri, relying_party_id, redirect_uris, claims, acr_values, status
		FROM clients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*domain.Client
	for rows.Next() {
		var c domain.Client
		var redirectURIs, claims, acrValues string
		err := rows.Scan(&c.ID, &c.Name, &c.LogoURI, &c.RelyingPartyID,
			&redirectURIs, &claims, &acrValues, &c.Status)
		if err != nil {
			return nil, err
		}
		c.RedirectURIs = splitAndFilter(redirectURIs)
		c.Claims = splitAndFilter(claims)
		c.ACRValues = splitAndFilter(acrValues)
		clients = append(clients, &c)
	}
	return clients, rows.Err()
}

func (r *ClientsRepo) CreateClient(ctx context.Context, c *domain.Client) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, logo_uri, relying_party_id, redirect_uris, claims, acr_values, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.LogoURI, c.RelyingPartyID,
		strings.Join(c.RedirectURIs, " "),
		strings.Join(c.Claims, " "),
		strings.Join(c.ACRValues, " "),
		c.Status,
	)
	return err
}

func (r *ClientsRepo) UpdateClientStatus(ctx context.Context, clientID, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, clientID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *ClientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
