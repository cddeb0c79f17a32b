package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/jwtx"
	"github.com/openauthority/idp/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       *jwtx.EdDSASigner
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	ping         func(ctx context.Context) error

	AuthorizeService *service.AuthorizeService
	LinkedService    *service.LinkedService
	TokenService     *service.TokenService
}

func NewRouter(
	signer *jwtx.EdDSASigner,
	issuer, buildVersion string,
	ping func(ctx context.Context) error,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		ping:         ping,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuthorize()
	r.registerLinked()
	r.registerOIDC()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuthorize() {
	h := &AuthorizeHandler{AuthorizeService: r.AuthorizeService}

	// POST /oauth-details - moderate rate limit (transaction creation)
	r.Mux.Handle("POST /v1/authorization/oauth-details",
		httpx.Chain(http.HandlerFunc(h.HandleOauthDetails),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /send-otp - strict rate limit (remote delivery fan-out)
	r.Mux.Handle("POST /v1/authorization/send-otp",
		httpx.Chain(http.HandlerFunc(h.HandleSendOtp),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /authenticate - strict rate limit (credential attempts)
	r.Mux.Handle("POST /v1/authorization/authenticate",
		httpx.Chain(http.HandlerFunc(h.HandleAuthenticate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth-code - moderate rate limit
	r.Mux.Handle("POST /v1/authorization/auth-code",
		httpx.Chain(http.HandlerFunc(h.HandleAuthCode),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerLinked() {
	h := &LinkedHandler{LinkedService: r.LinkedService}

	// POST /link-code - moderate rate limit; generation is budgeted
	// per transaction on top of this
	r.Mux.Handle("POST /v1/linked-authorization/link-code",
		httpx.Chain(http.HandlerFunc(h.HandleLinkCode),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /link-transaction - strict rate limit (code guessing)
	r.Mux.Handle("POST /v1/linked-authorization/link-transaction",
		httpx.Chain(http.HandlerFunc(h.HandleLinkTransaction),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/linked-authorization/send-otp",
		httpx.Chain(http.HandlerFunc(h.HandleSendOtp),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/linked-authorization/authenticate",
		httpx.Chain(http.HandlerFunc(h.HandleAuthenticate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/linked-authorization/consent",
		httpx.Chain(http.HandlerFunc(h.HandleConsent),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Long-poll endpoints - lenient limit, requests park for a while
	r.Mux.Handle("POST /v1/linked-authorization/link-status",
		httpx.Chain(http.HandlerFunc(h.HandleLinkStatus),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/linked-authorization/link-auth-code",
		httpx.Chain(http.HandlerFunc(h.HandleLinkAuthCode),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerOIDC() {
	// POST /token - strict rate limit by IP (covers redemption races)
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	userinfoHandler := &UserInfoHandler{TokenService: r.TokenService}
	r.Mux.Handle("GET /v1/oidc/userinfo",
		httpx.Chain(userinfoHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.signer),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems
	// may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.ping, r.signer),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
