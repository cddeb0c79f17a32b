package http

import (
	"net/http"

	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/idpsdk"
)

// AuthorizeHandler serves the same-device authorization endpoints under
// /v1/authorization.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
}

// HandleOauthDetails serves POST /v1/authorization/oauth-details.
func (h *AuthorizeHandler) HandleOauthDetails(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.OAuthDetailRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.AuthorizeService.GetOauthDetails(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set(idpsdk.HeaderOAuthDetailsHash, idpsdk.HashOAuthDetails(resp))
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleSendOtp serves POST /v1/authorization/send-otp.
func (h *AuthorizeHandler) HandleSendOtp(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.OtpRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.DetailsHash = r.Header.Get(idpsdk.HeaderOAuthDetailsHash)

	resp, err := h.AuthorizeService.SendOtp(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleAuthenticate serves POST /v1/authorization/authenticate.
func (h *AuthorizeHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.AuthRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.DetailsHash = r.Header.Get(idpsdk.HeaderOAuthDetailsHash)

	resp, err := h.AuthorizeService.Authenticate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleAuthCode serves POST /v1/authorization/auth-code.
func (h *AuthorizeHandler) HandleAuthCode(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.AuthCodeRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.DetailsHash = r.Header.Get(idpsdk.HeaderOAuthDetailsHash)

	resp, err := h.AuthorizeService.GetAuthCode(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
