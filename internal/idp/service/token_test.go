package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/pkg/cryptox"
	"github.com/openauthority/idp/pkg/idpsdk"
	"github.com/openauthority/idp/pkg/jwtx"
)

// issueCode drives a transaction through to an authorization code,
// optionally binding a PKCE challenge at authorize time.
func issueCode(t *testing.T, env *testEnv, challenge, method string) string {
	t.Helper()

	req := detailRequest()
	req.CodeChallenge = challenge
	req.CodeChallengeMethod = method

	txnID := startTransaction(t, env, req)
	authenticateTransaction(t, env, txnID)

	resp, err := env.authorize.GetAuthCode(context.Background(), &idpsdk.AuthCodeRequest{
		TransactionID:  txnID,
		AcceptedClaims: []string{"name"},
	})
	require.NoError(t, err)
	return resp.Code
}

func tokenRequest(code, verifier string) *TokenRequest {
	return &TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  "https://rp.example.com/cb",
		ClientID:     "client-1",
		CodeVerifier: verifier,
	}
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("redeems a code for bound tokens", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, s256("verifier-123"), "S256")

		resp, err := env.token.ExchangeCode(ctx, tokenRequest(code, "verifier-123"))
		require.NoError(t, err)
		require.Equal(t, "Bearer", resp.TokenType)
		require.Equal(t, 900, resp.ExpiresIn)

		claims, err := env.token.Verifier.VerifyAccessToken(resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "psu-ind-1", claims.Subject)
		require.Equal(t, "client-1", claims.ClientID)
		require.Equal(t, "openid", claims.Scope)

		// the userinfo stage is keyed by the access token's at_hash
		txn, err := env.txns.Get(ctx, store.StageUserinfo, cryptox.AccessTokenHash(resp.AccessToken))
		require.NoError(t, err)
		require.Equal(t, "payload-ind-1", txn.EncryptedKyc)
	})

	t.Run("permitted scopes appear in the access token", func(t *testing.T) {
		env := newTestEnv(t)

		req := detailRequest()
		req.Scope = "openid profile wallet.read"
		txnID := startTransaction(t, env, req)
		authenticateTransaction(t, env, txnID)

		codeResp, err := env.authorize.GetAuthCode(ctx, &idpsdk.AuthCodeRequest{
			TransactionID:   txnID,
			AcceptedClaims:  []string{"name"},
			PermittedScopes: []string{"wallet.read"},
		})
		require.NoError(t, err)

		resp, err := env.token.ExchangeCode(ctx, tokenRequest(codeResp.Code, ""))
		require.NoError(t, err)

		claims, err := env.token.Verifier.VerifyAccessToken(resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "openid wallet.read", claims.Scope)
	})

	t.Run("plain pkce compares verbatim", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, "plain-secret", "plain")

		_, err := env.token.ExchangeCode(ctx, tokenRequest(code, "plain-secret"))
		require.NoError(t, err)
	})

	t.Run("wrong verifier does not burn the code", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, s256("right"), "S256")

		_, err := env.token.ExchangeCode(ctx, tokenRequest(code, "wrong"))
		require.ErrorIs(t, err, ErrPKCEFailed)

		_, err = env.token.ExchangeCode(ctx, tokenRequest(code, "right"))
		require.NoError(t, err)
	})

	t.Run("missing verifier fails when a challenge was bound", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, s256("right"), "S256")

		_, err := env.token.ExchangeCode(ctx, tokenRequest(code, ""))
		require.ErrorIs(t, err, ErrPKCEFailed)
	})

	t.Run("client and redirect must match the transaction", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, "", "")

		req := tokenRequest(code, "")
		req.ClientID = "client-2"
		_, err := env.token.ExchangeCode(ctx, req)
		require.ErrorIs(t, err, ErrInvalidClient)

		req = tokenRequest(code, "")
		req.RedirectURI = "https://rp.example.com/other"
		_, err = env.token.ExchangeCode(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRedirectURI)
	})

	t.Run("codes are single use", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, "", "")

		_, err := env.token.ExchangeCode(ctx, tokenRequest(code, ""))
		require.NoError(t, err)

		_, err = env.token.ExchangeCode(ctx, tokenRequest(code, ""))
		require.ErrorIs(t, err, ErrInvalidTransaction)
	})

	t.Run("grant type and code are required", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.token.ExchangeCode(ctx, &TokenRequest{GrantType: "client_credentials", Code: "x"})
		require.ErrorIs(t, err, ErrInvalidRequest)

		_, err = env.token.ExchangeCode(ctx, &TokenRequest{GrantType: "authorization_code"})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown code", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.token.ExchangeCode(ctx, tokenRequest("not-a-code", ""))
		require.ErrorIs(t, err, ErrInvalidTransaction)
	})

	t.Run("exchange failure surfaces and keeps the code", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, "", "")
		env.auth.failExchange = true

		_, err := env.token.ExchangeCode(ctx, tokenRequest(code, ""))
		require.Error(t, err)

		env.auth.failExchange = false
		_, err = env.token.ExchangeCode(ctx, tokenRequest(code, ""))
		require.NoError(t, err)
	})
}

func TestUserInfo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns the released payload repeatedly", func(t *testing.T) {
		env := newTestEnv(t)
		code := issueCode(t, env, "", "")

		resp, err := env.token.ExchangeCode(ctx, tokenRequest(code, ""))
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			payload, err := env.token.UserInfo(ctx, resp.AccessToken)
			require.NoError(t, err)
			require.Equal(t, "payload-ind-1", payload)
		}
	})

	t.Run("rejects garbage tokens", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.token.UserInfo(ctx, "not.a.jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects a valid token with no stored entry", func(t *testing.T) {
		env := newTestEnv(t)

		// well formed and signed by us, but never produced by an exchange
		token, err := env.signer.Sign(jwtx.NewAccessClaims(
			"test-issuer", "psu-ind-1", "client-1", "openid", 15*time.Minute, time.Now()))
		require.NoError(t, err)

		_, err = env.token.UserInfo(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
