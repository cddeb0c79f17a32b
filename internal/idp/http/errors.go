package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/pkg/idpsdk"
	"github.com/openauthority/idp/pkg/slogx"
)

// writeServiceError maps service sentinels onto the wire error
// taxonomy. Anything unmapped is logged and reported as server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTransaction):
		idpsdk.ErrInvalidTransaction.WriteError(w)
	case errors.Is(err, service.ErrInvalidClient):
		idpsdk.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		idpsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidRedirectURI):
		idpsdk.ErrInvalidRedirectURI.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		idpsdk.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrNoACRRegistered):
		idpsdk.ErrNoACRRegistered.WriteError(w)
	case errors.Is(err, service.ErrAuthFactorMismatch):
		idpsdk.ErrAuthFactorMismatch.WriteError(w)
	case errors.Is(err, service.ErrAuthFailed):
		idpsdk.ErrAuthFailed.WriteError(w)
	case errors.Is(err, service.ErrSendOtpFailed):
		idpsdk.ErrSendOtpFailed.WriteError(w)
	case errors.Is(err, service.ErrInvalidAcceptedClaim):
		idpsdk.ErrInvalidAcceptedClaim.WriteError(w)
	case errors.Is(err, service.ErrInvalidPermittedScope):
		idpsdk.ErrInvalidPermittedScope.WriteError(w)
	case errors.Is(err, service.ErrInvalidLinkCode):
		idpsdk.ErrInvalidLinkCode.WriteError(w)
	case errors.Is(err, service.ErrLinkCodeLimitReached):
		idpsdk.ErrLinkCodeLimitReached.WriteError(w)
	case errors.Is(err, service.ErrLinkCodeGenFailed):
		idpsdk.ErrLinkCodeGenFailed.WriteError(w)
	case errors.Is(err, service.ErrResponseTimeout):
		idpsdk.ErrResponseTimeout.WriteError(w)
	case errors.Is(err, service.ErrPKCEFailed):
		idpsdk.ErrPKCEFailed.WriteError(w)
	case errors.Is(err, service.ErrUnsupportedPKCEMethod):
		idpsdk.ErrUnsupportedPKCEMethod.WriteError(w)
	case errors.Is(err, service.ErrInvalidToken):
		idpsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, context.Canceled):
		// Caller went away mid long-poll; nothing useful to write.
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		idpsdk.ErrServerError.WriteError(w)
	}
}

// readJSON decodes the request body into v, writing invalid_request on
// failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	return true
}
