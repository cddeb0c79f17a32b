package http

import (
	"net/http"
	"strings"

	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/idpsdk"
)

// TokenHandler serves POST /v1/oauth/token.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	req := &service.TokenRequest{
		GrantType:    strings.TrimSpace(r.Form.Get("grant_type")),
		Code:         strings.TrimSpace(r.Form.Get("code")),
		RedirectURI:  strings.TrimSpace(r.Form.Get("redirect_uri")),
		ClientID:     strings.TrimSpace(r.Form.Get("client_id")),
		CodeVerifier: strings.TrimSpace(r.Form.Get("code_verifier")),
	}
	if req.Code == "" || req.RedirectURI == "" || req.ClientID == "" {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	resp, err := h.TokenService.ExchangeCode(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
