package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the adapter.
// It supports environment-based initialization with sensible defaults.
type Config struct {
	ServiceName string // e.g. "bling-adapter"
	Env         string // "dev" or "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int    // HTTP API port

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Bling API endpoints. Overridable so tests can point at a local server.
	TokenURL  string
	AuthURL   string
	OrdersURL string

	// RedirectURI must match the URI registered with Bling byte for byte.
	RedirectURI string

	// Paging and defensive limits for the order listing endpoint.
	PageSize    int
	MaxPages    int
	HTTPTimeout time.Duration

	// Retry policy for the token endpoint (429 only).
	RefreshMaxAttempts int
	RefreshBaseDelay   time.Duration

	// Outbound call budget per account (Bling enforces per-minute quotas).
	RequestsPerSecond int
	Burst             int

	// Result cache TTL for fetched order sets.
	ResultCacheTTL time.Duration

	// RegistryPath is the on-disk account registry written by the bootstrap.
	RegistryPath string
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName:      GetEnv("SERVICE_NAME", "bling-adapter"),
		Env:              GetEnv("ENV", "dev"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		Port:             GetEnvInt("PORT", 9040),
		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),

		TokenURL:  GetEnv("BLING_TOKEN_URL", "https://www.bling.com.br/Api/v3/oauth/token"),
		AuthURL:   GetEnv("BLING_AUTH_URL", "https://www.bling.com.br/Api/v3/oauth/authorize"),
		OrdersURL: GetEnv("BLING_ORDERS_URL", "https://www.bling.com.br/Api/v3/pedidos/vendas"),

		RedirectURI: GetEnv("BLING_REDIRECT_URI", "http://localhost:8001/callback"),

		PageSize:    GetEnvInt("BLING_PAGE_SIZE", 100),
		MaxPages:    GetEnvInt("BLING_MAX_PAGES", 1000),
		HTTPTimeout: GetEnvDuration("BLING_HTTP_TIMEOUT", 30*time.Second),

		RefreshMaxAttempts: GetEnvInt("BLING_REFRESH_MAX_ATTEMPTS", 3),
		RefreshBaseDelay:   GetEnvDuration("BLING_REFRESH_BASE_DELAY", 2*time.Second),

		RequestsPerSecond: GetEnvInt("BLING_REQUESTS_PER_SECOND", 3),
		Burst:             GetEnvInt("BLING_BURST", 6),

		ResultCacheTTL: GetEnvDuration("RESULT_CACHE_TTL", 5*time.Minute),

		RegistryPath: GetEnv("REGISTRY_PATH", "config.yaml"),
	}
}
