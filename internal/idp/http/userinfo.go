package http

import (
	"net/http"

	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/idpsdk"
)

// UserInfoHandler serves GET /v1/oidc/userinfo. The response body is
// the released subject payload, keyed off the bearer token's at_hash.
type UserInfoHandler struct {
	TokenService *service.TokenService
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := httpx.BearerToken(r)
	if token == "" {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		idpsdk.ErrInvalidToken.WriteError(w)
		return
	}

	payload, err := h.TokenService.UserInfo(r.Context(), token)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/jwt")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}
