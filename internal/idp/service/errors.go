package service

import "errors"

// Sentinel errors surfaced to transports. The string values double as
// OAuth-style error codes in HTTP responses.
var (
	ErrInvalidTransaction = errors.New("invalid_transaction")
	ErrInvalidClient      = errors.New("invalid_client")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidRedirectURI = errors.New("invalid_redirect_uri")
	ErrInvalidScope       = errors.New("invalid_scope")

	ErrNoACRRegistered       = errors.New("no_acr_registered")
	ErrAuthFactorMismatch    = errors.New("auth_factor_mismatch")
	ErrAuthFailed            = errors.New("auth_failed")
	ErrSendOtpFailed         = errors.New("send_otp_failed")
	ErrInvalidAcceptedClaim  = errors.New("invalid_accepted_claim")
	ErrInvalidPermittedScope = errors.New("invalid_permitted_scope")

	ErrInvalidLinkCode      = errors.New("invalid_link_code")
	ErrLinkCodeLimitReached = errors.New("link_code_limit_reached")
	ErrLinkCodeGenFailed    = errors.New("link_code_gen_failed")
	ErrResponseTimeout      = errors.New("response_timeout")

	ErrPKCEFailed            = errors.New("pkce_failed")
	ErrUnsupportedPKCEMethod = errors.New("unsupported_pkce_challenge_method")
	ErrInvalidToken          = errors.New("invalid_token")

	ErrUnknown = errors.New("unknown_error")
)
