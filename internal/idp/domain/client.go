package domain

import "strings"

// Client is a registered OIDC relying party application.
type Client struct {
	ID             string
	Name           string
	LogoURI        string
	RelyingPartyID string

	// RedirectURIs are the registered redirect patterns. An entry
	// ending in "*" matches any URI sharing its prefix, otherwise the
	// match is exact.
	RedirectURIs []string

	// Claims the client is allowed to request.
	Claims []string

	// ACRValues the client is registered for, in preference order.
	ACRValues []string

	Status string
}

// ClientStatusActive is the only status allowed to start transactions.
const ClientStatusActive = "ACTIVE"

// MatchesRedirectURI reports whether uri matches one of the registered
// redirect patterns.
func (c *Client) MatchesRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if prefix, ok := strings.CutSuffix(registered, "*"); ok {
			if strings.HasPrefix(uri, prefix) {
				return true
			}
			continue
		}
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsClaim reports whether the client registered for the claim.
func (c *Client) AllowsClaim(name string) bool {
	for _, claim := range c.Claims {
		if claim == name {
			return true
		}
	}
	return false
}
