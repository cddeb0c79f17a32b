package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openauthority/idp/internal/idp/authenticator"
	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/factors"
	httpapi "github.com/openauthority/idp/internal/idp/http"
	"github.com/openauthority/idp/internal/idp/service"
	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/internal/idp/store/drivers/sqlite"
	"github.com/openauthority/idp/internal/idp/store/memory"
	"github.com/openauthority/idp/internal/idp/waiter"
	"github.com/openauthority/idp/pkg/cryptox"
	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/jwtx"
	"github.com/openauthority/idp/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity provider with all its
// dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     *sqlite.Store
	kv     *memory.Store
	signer *jwtx.EdDSASigner

	// Services
	authorizeService *service.AuthorizeService
	linkedService    *service.LinkedService
	tokenService     *service.TokenService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "idp",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSigner(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("idp starting", "port", app.cfg.Port, "version", BuildVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := app.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return app.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down idp...")

	// Give outstanding requests, including parked long polls, a deadline
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	_ = app.kv.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("idp stopped")
	return nil
}

// initDatabase opens the registry database, applies migrations and
// seeds a demo client in dev when the registry is empty.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")

	if app.cfg.Env == "dev" {
		if err := app.seedDemoClient(); err != nil {
			_ = db.Close()
			return err
		}
	}
	return nil
}

func (app *Application) seedDemoClient() error {
	ctx := context.Background()
	clients := app.db.Clients()

	empty, err := clients.IsEmpty(ctx)
	if err != nil || !empty {
		return err
	}

	demo := &domain.Client{
		ID:             "demo-wallet",
		Name:           "Demo Wallet",
		RelyingPartyID: "demo-rp",
		RedirectURIs:   []string{"http://localhost:3000/callback", "http://localhost:3000/dev/*"},
		Claims:         []string{"name", "given_name", "birthdate", "email", "phone", "address"},
		ACRValues: []string{
			"urn:openauthority:acr:generated-code",
			"urn:openauthority:acr:static-code",
			"urn:openauthority:acr:biometrics",
		},
		Status: domain.ClientStatusActive,
	}
	if err := clients.CreateClient(ctx, demo); err != nil {
		return fmt.Errorf("failed to seed demo client: %w", err)
	}

	app.logger.Info("seeded demo client", "client_id", demo.ID)
	return nil
}

func (app *Application) initSigner() error {
	if app.cfg.SigningKeyFile == "" {
		signer, err := jwtx.NewEphemeralSignerEdDSA(app.cfg.SigningKeyID)
		if err != nil {
			return fmt.Errorf("failed to generate signing key: %w", err)
		}
		app.signer = signer
		app.logger.Warn("using ephemeral signing key; tokens will not survive a restart")
		return nil
	}

	pemKey, err := os.ReadFile(app.cfg.SigningKeyFile)
	if errors.Is(err, os.ErrNotExist) {
		// First boot with a configured key file: generate and persist
		// the key so tokens survive restarts.
		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return fmt.Errorf("failed to generate signing key: %w", err)
		}
		if err := os.WriteFile(app.cfg.SigningKeyFile, pemKey, 0o600); err != nil {
			return fmt.Errorf("failed to persist signing key: %w", err)
		}
		app.logger.Info("generated new signing key", "file", app.cfg.SigningKeyFile)
	} else if err != nil {
		return fmt.Errorf("failed to read signing key: %w", err)
	}
	signer, err := jwtx.NewSignerEdDSA(app.cfg.SigningKeyID, pemKey)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	app.signer = signer
	return nil
}

// initServices initializes the flow state store and business services.
func (app *Application) initServices() error {
	app.kv = memory.New(app.cfg.FlowStateTTL,
		memory.WithStageTTL(store.StageAuthCode, app.cfg.AuthCodeTTL),
		memory.WithStageTTL(store.StageUserinfo, app.cfg.UserinfoTTL),
		memory.WithStageTTL(store.StageLinkCode, app.cfg.LinkCodeExpiry),
	)
	transactions := store.NewTransactions(app.kv)
	linkCodes := store.NewLinkCodes(app.kv)

	catalog := factors.Default()
	if app.cfg.FactorsFile != "" {
		loaded, err := factors.Load(app.cfg.FactorsFile)
		if err != nil {
			return fmt.Errorf("failed to load factor mapping: %w", err)
		}
		catalog = loaded
	}

	auth := authenticator.New(app.cfg.Issuer, app.cfg.Pepper)
	if app.cfg.SeedIdentities {
		auth.SeedDefaults()
		app.logger.Info("seeded demo identity directory")
	}

	resolver := &service.ClaimsResolver{
		ScopeClaims: defaultScopeClaims(),
		Catalog:     catalog,
	}
	consent := &service.ConsentService{Store: app.db.Consents()}

	app.authorizeService = &service.AuthorizeService{
		Clients:               app.db.Clients(),
		Store:                 transactions,
		Resolver:              resolver,
		Consent:               consent,
		Auth:                  auth,
		AuthorizeScopes:       httpx.ParseSpaceDelimitedFields(app.cfg.AuthorizeScopes),
		AuthTxnIDLength:       app.cfg.AuthTxnIDLength,
		LinkCodeLimit:         app.cfg.LinkCodeLimit,
		LinkCodeQueueCapacity: app.cfg.LinkCodeQueueCapacity,
	}

	app.linkedService = &service.LinkedService{
		Clients:         app.db.Clients(),
		Store:           transactions,
		Codes:           linkCodes,
		Resolver:        resolver,
		Consent:         consent,
		Auth:            auth,
		StatusWaiters:   waiter.NewRegistry[string](),
		AuthCodeWaiters: waiter.NewRegistry[string](),
		LinkCodeLength:  app.cfg.LinkCodeLength,
		LinkCodeTTL:     app.cfg.LinkCodeExpiry,
		PollTimeout:     app.cfg.PollTimeout,
	}

	app.tokenService = &service.TokenService{
		Store:          transactions,
		Auth:           auth,
		Signer:         app.signer,
		Verifier:       app.signer.Verifier(app.cfg.Issuer),
		Issuer:         app.cfg.Issuer,
		AccessTokenTTL: app.cfg.AccessTokenTTL,
	}

	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		app.cfg.Issuer,
		BuildVersion,
		app.db.Ping,
		app.logger,
	)

	router.AuthorizeService = app.authorizeService
	router.LinkedService = app.linkedService
	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// defaultScopeClaims is the built-in scope to claim implication map.
func defaultScopeClaims() map[string][]string {
	return map[string][]string{
		"profile": {"name", "given_name", "middle_name", "birthdate", "gender", "picture", "address"},
		"email":   {"email"},
		"phone":   {"phone"},
	}
}
