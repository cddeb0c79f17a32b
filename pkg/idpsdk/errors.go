package idpsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes shared between server responses and SDK errors.
const (
	ErrorCodeInvalidTransaction = "invalid_transaction"
	ErrorCodeInvalidClient      = "invalid_client"
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidRedirectURI = "invalid_redirect_uri"
	ErrorCodeInvalidScope       = "invalid_scope"

	ErrorCodeNoACRRegistered       = "no_acr_registered"
	ErrorCodeAuthFactorMismatch    = "auth_factor_mismatch"
	ErrorCodeAuthFailed            = "auth_failed"
	ErrorCodeSendOtpFailed         = "send_otp_failed"
	ErrorCodeInvalidAcceptedClaim  = "invalid_accepted_claim"
	ErrorCodeInvalidPermittedScope = "invalid_permitted_scope"

	ErrorCodeInvalidLinkCode      = "invalid_link_code"
	ErrorCodeLinkCodeLimitReached = "link_code_limit_reached"
	ErrorCodeLinkCodeGenFailed    = "link_code_gen_failed"
	ErrorCodeResponseTimeout      = "response_timeout"

	ErrorCodePKCEFailed            = "pkce_failed"
	ErrorCodeUnsupportedPKCEMethod = "unsupported_pkce_challenge_method"

	ErrorCodeInvalidToken = "invalid_token"
	ErrorCodeServerError  = "server_error"
)

// APIError is the error envelope every endpoint returns. It implements
// the error interface so SDK callers can switch on Code.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error identifier
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// Predefined API errors for the full error taxonomy.
var (
	ErrInvalidTransaction = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidTransaction,
		Description: "the transaction is unknown, expired or in the wrong stage",
	}
	ErrInvalidClient = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "unknown or inactive client",
	}
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}
	ErrInvalidRedirectURI = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRedirectURI,
		Description: "redirect_uri does not match any registered pattern",
	}
	ErrInvalidScope = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "the requested scope is invalid or missing openid",
	}
	ErrNoACRRegistered = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeNoACRRegistered,
		Description: "no requested acr value is registered for the client",
	}
	ErrAuthFactorMismatch = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAuthFactorMismatch,
		Description: "submitted challenges do not match any advertised factor combination",
	}
	ErrAuthFailed = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeAuthFailed,
		Description: "authentication failed",
	}
	ErrSendOtpFailed = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeSendOtpFailed,
		Description: "otp dispatch failed",
	}
	ErrInvalidAcceptedClaim = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidAcceptedClaim,
		Description: "accepted claims are inconsistent with the requested claims",
	}
	ErrInvalidPermittedScope = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidPermittedScope,
		Description: "permitted scopes are inconsistent with the requested scopes",
	}
	ErrInvalidLinkCode = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidLinkCode,
		Description: "link code is unknown, expired or bound to another transaction",
	}
	ErrLinkCodeLimitReached = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeLinkCodeLimitReached,
		Description: "no link code generations left for this transaction",
	}
	ErrLinkCodeGenFailed = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeLinkCodeGenFailed,
		Description: "could not generate a unique link code",
	}
	ErrResponseTimeout = &APIError{
		StatusCode:  http.StatusRequestTimeout,
		Code:        ErrorCodeResponseTimeout,
		Description: "timed out waiting for the linked flow",
	}
	ErrPKCEFailed = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodePKCEFailed,
		Description: "code verifier does not satisfy the code challenge",
	}
	ErrUnsupportedPKCEMethod = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedPKCEMethod,
		Description: "unsupported code challenge method",
	}
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "access token is missing, malformed or expired",
	}
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "an unexpected error occurred",
	}
)
