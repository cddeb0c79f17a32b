package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for tokens (default derived)

	// Flow state TTLs. FlowStateTTL is the default for every stage;
	// the auth-code and userinfo stages get their own windows.
	FlowStateTTL time.Duration // Optional: default stage TTL (default: 10m)
	AuthCodeTTL  time.Duration // Optional: code redemption window (default: 5m)
	UserinfoTTL  time.Duration // Optional: userinfo availability window (default: access token TTL)

	AccessTokenTTL time.Duration // Optional: access/id token lifetime (default: 15m)

	// Cross-device linking.
	LinkCodeLength        int           // Optional: characters per link code (default: 6)
	LinkCodeExpiry        time.Duration // Optional: how long a code stays claimable (default: 2m)
	LinkCodeLimit         int           // Optional: generation budget per transaction (default: 10)
	LinkCodeQueueCapacity int           // Optional: recency window of active codes (default: 3)
	PollTimeout           time.Duration // Optional: long-poll park duration (default: 25s)

	AuthTxnIDLength int    // Optional: derived authenticator transaction id length (default: 10)
	SigningKeyFile  string // Optional: PKCS8 Ed25519 PEM; ephemeral key when unset
	SigningKeyID    string // Optional: kid advertised in JWKS (default: idp-key-1)
	FactorsFile     string // Optional: ACR/AMR mapping JSON; built-in mapping when unset
	AuthorizeScopes string // Optional: space-separated consentable scopes
	Pepper          string // Optional: pepper for pairwise subject derivation
	SeedIdentities  bool   // Optional: seed the demo identity directory (default: true in dev)

	DatabaseFile        string        // Optional: path to SQLite database file (default: ./idp.db)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8088)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer: os.Getenv("IDP_ISSUER"),

		FlowStateTTL:   getEnvDurationOrDefault("IDP_FLOW_STATE_TTL", 10*time.Minute),
		AuthCodeTTL:    getEnvDurationOrDefault("IDP_AUTH_CODE_TTL", 5*time.Minute),
		AccessTokenTTL: getEnvDurationOrDefault("IDP_ACCESS_TOKEN_TTL", 15*time.Minute),

		LinkCodeLength:        getEnvIntOrDefault("IDP_LINK_CODE_LENGTH", 6),
		LinkCodeExpiry:        getEnvDurationOrDefault("IDP_LINK_CODE_EXPIRY", 2*time.Minute),
		LinkCodeLimit:         getEnvIntOrDefault("IDP_LINK_CODE_LIMIT", 10),
		LinkCodeQueueCapacity: getEnvIntOrDefault("IDP_LINK_CODE_QUEUE_CAPACITY", 3),
		PollTimeout:           getEnvDurationOrDefault("IDP_POLL_TIMEOUT", 25*time.Second),

		AuthTxnIDLength: getEnvIntOrDefault("IDP_AUTH_TXN_ID_LENGTH", 10),
		SigningKeyFile:  os.Getenv("IDP_SIGNING_KEY_FILE"),
		SigningKeyID:    getEnvOrDefault("IDP_SIGNING_KEY_ID", "idp-key-1"),
		FactorsFile:     os.Getenv("IDP_FACTORS_FILE"),
		AuthorizeScopes: getEnvOrDefault("IDP_AUTHORIZE_SCOPES", "profile email phone"),
		Pepper:          getEnvOrDefault("IDP_PEPPER", "dev-pepper"),

		DatabaseFile:        getEnvOrDefault("IDP_DATABASE_FILE", "idp.db"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8088),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	// Userinfo availability follows the access token lifetime unless
	// configured explicitly.
	cfg.UserinfoTTL = getEnvDurationOrDefault("IDP_USERINFO_TTL", cfg.AccessTokenTTL)

	cfg.SeedIdentities = getEnvBoolOrDefault("IDP_SEED_IDENTITIES", cfg.Env == "dev")

	if cfg.Issuer == "" {
		cfg.Issuer = "openauthority-idp"
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
