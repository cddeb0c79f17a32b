package http

import (
	"net/http"

	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/idpsdk"
)

// LinkedHandler serves the cross-device endpoints under
// /v1/linked-authorization. The link-status and link-auth-code
// endpoints are long polls; the request parks until the other device
// acts or the poll window lapses.
type LinkedHandler struct {
	LinkedService *service.LinkedService
}

// HandleLinkCode serves POST /v1/linked-authorization/link-code.
func (h *LinkedHandler) HandleLinkCode(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.LinkCodeRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.LinkedService.GenerateLinkCode(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLinkTransaction serves POST /v1/linked-authorization/link-transaction.
func (h *LinkedHandler) HandleLinkTransaction(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.LinkTransactionRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.LinkedService.LinkTransaction(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleSendOtp serves POST /v1/linked-authorization/send-otp.
func (h *LinkedHandler) HandleSendOtp(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.LinkedOtpRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.LinkedService.LinkedSendOtp(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleAuthenticate serves POST /v1/linked-authorization/authenticate.
func (h *LinkedHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.LinkedAuthRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.LinkedService.LinkedAuthenticate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleConsent serves POST /v1/linked-authorization/consent.
func (h *LinkedHandler) HandleConsent(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.LinkedConsentRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.LinkedService.LinkedConsent(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLinkStatus serves POST /v1/linked-authorization/link-status.
func (h *LinkedHandler) HandleLinkStatus(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.LinkStatusRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.LinkedService.GetLinkStatus(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLinkAuthCode serves POST /v1/linked-authorization/link-auth-code.
func (h *LinkedHandler) HandleLinkAuthCode(w http.ResponseWriter, r *http.Request) {
	var req idpsdk.LinkAuthCodeRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, err := h.LinkedService.GetLinkAuthCode(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
