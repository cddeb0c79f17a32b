package idpsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin SDK for the authorization server. Long-poll calls
// (LinkStatus, LinkAuthCode) can block for the server's poll timeout,
// so the HTTP client timeout is set generously.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// OAuthDetails starts an authorization transaction.
func (c *Client) OAuthDetails(ctx context.Context, req *OAuthDetailRequest) (*OAuthDetailResponse, error) {
	var resp OAuthDetailResponse
	if err := c.postJSON(ctx, "/v1/authorization/oauth-details", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendOtp dispatches an OTP for a pending transaction. Set
// req.DetailsHash to the value of HashOAuthDetails over the
// oauth-details response to prove the flow still acts on it.
func (c *Client) SendOtp(ctx context.Context, req *OtpRequest) (*OtpResponse, error) {
	var resp OtpResponse
	if err := c.postJSONEcho(ctx, "/v1/authorization/send-otp", req.DetailsHash, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Authenticate submits the user's challenges.
func (c *Client) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.postJSONEcho(ctx, "/v1/authorization/authenticate", req.DetailsHash, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuthCode finalizes consent and retrieves the authorization code.
func (c *Client) AuthCode(ctx context.Context, req *AuthCodeRequest) (*AuthCodeResponse, error) {
	var resp AuthCodeResponse
	if err := c.postJSONEcho(ctx, "/v1/authorization/auth-code", req.DetailsHash, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateLinkCode requests a fresh link code on the origin device.
func (c *Client) GenerateLinkCode(ctx context.Context, req *LinkCodeRequest) (*LinkCodeResponse, error) {
	var resp LinkCodeResponse
	if err := c.postJSON(ctx, "/v1/linked-authorization/link-code", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkTransaction claims a link code from the secondary device.
func (c *Client) LinkTransaction(ctx context.Context, req *LinkTransactionRequest) (*LinkTransactionResponse, error) {
	var resp LinkTransactionResponse
	if err := c.postJSON(ctx, "/v1/linked-authorization/link-transaction", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkedSendOtp dispatches an OTP within a linked transaction.
func (c *Client) LinkedSendOtp(ctx context.Context, req *LinkedOtpRequest) (*OtpResponse, error) {
	var resp OtpResponse
	if err := c.postJSON(ctx, "/v1/linked-authorization/send-otp", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkedAuthenticate submits challenges for a linked transaction.
func (c *Client) LinkedAuthenticate(ctx context.Context, req *LinkedAuthRequest) (*LinkedAuthResponse, error) {
	var resp LinkedAuthResponse
	if err := c.postJSON(ctx, "/v1/linked-authorization/authenticate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkedConsent records consent on the secondary device.
func (c *Client) LinkedConsent(ctx context.Context, req *LinkedConsentRequest) (*LinkedConsentResponse, error) {
	var resp LinkedConsentResponse
	if err := c.postJSON(ctx, "/v1/linked-authorization/consent", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkStatus long-polls until the code is claimed or the server times
// the poll out.
func (c *Client) LinkStatus(ctx context.Context, req *LinkStatusRequest) (*LinkStatusResponse, error) {
	var resp LinkStatusResponse
	if err := c.postJSON(ctx, "/v1/linked-authorization/link-status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkAuthCode long-polls for the linked flow's authorization code.
func (c *Client) LinkAuthCode(ctx context.Context, req *LinkAuthCodeRequest) (*AuthCodeResponse, error) {
	var resp AuthCodeResponse
	if err := c.postJSON(ctx, "/v1/linked-authorization/link-auth-code", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangeCode redeems an authorization code at the token endpoint.
func (c *Client) ExchangeCode(ctx context.Context, clientID, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", clientID)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp TokenResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserInfo fetches the released user data for an access token. The
// response body is an opaque encrypted payload.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/v1/oidc/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", parseAPIError(resp.StatusCode, body)
	}
	return string(body), nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return c.postJSONEcho(ctx, path, "", in, out)
}

// postJSONEcho posts like postJSON and attaches the oauth-details-hash
// echo header when hash is non-empty.
func (c *Client) postJSONEcho(ctx context.Context, path, hash string, in, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if hash != "" {
		req.Header.Set(HeaderOAuthDetailsHash, hash)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func parseAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = status
		return &apiErr
	}
	return &APIError{
		StatusCode:  status,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("unexpected response (status %d)", status),
	}
}
