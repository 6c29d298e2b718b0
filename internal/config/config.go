// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server, storage,
// vendor and bot settings alongside logging, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-recorder-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StorageConfig holds defaults for per-user storage providers.
type StorageConfig struct {
	LocalRoot string        // STORAGE_LOCAL_ROOT
	CacheTTL  time.Duration // STORAGE_PROVIDER_CACHE_TTL
}

// VendorConfig configures the vendor API client.
type VendorConfig struct {
	BaseURL     string        // VENDOR_API_BASE_URL (per-account override allowed)
	Timeout     time.Duration // VENDOR_TIMEOUT
	PageSize    int           // VENDOR_PAGE_SIZE
	Concurrency int           // VENDOR_SYNC_CONCURRENCY
}

// BotConfig configures the chat bot long-poll loop.
type BotConfig struct {
	Enabled        bool          // BOT_ENABLED (start polling at boot)
	Token          string        // BOT_TOKEN
	BaseURL        string        // BOT_API_BASE_URL
	AllowedSenders []int64       // BOT_ALLOWED_SENDERS (empty = everyone)
	PollTimeout    time.Duration // BOT_POLL_TIMEOUT
	RequestTimeout time.Duration // BOT_REQUEST_TIMEOUT (added on top of the poll timeout)
	Backoff        time.Duration // BOT_BACKOFF
	PersistCursor  bool          // BOT_PERSIST_CURSOR
	FallbackUser   bool          // BOT_FALLBACK_FIRST_USER
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath         string // SQLite path
	MaxUploadBytes int64  // manual upload cap
	MaxBodyBytes   int64  // cap for JSON bodies
	TranscriptMax  int    // max stored transcript runes (0 = unlimited)
	Stopwords      []string

	Storage StorageConfig
	Vendor  VendorConfig
	Bot     BotConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:         getenv("DB_PATH", "recorder.db"),
		MaxUploadBytes: int64(getint("MAX_UPLOAD_BYTES", 64<<20)),
		MaxBodyBytes:   int64(getint("MAX_BODY_BYTES", 1<<20)),
		TranscriptMax:  getint("TRANSCRIPT_MAX_RUNES", 100_000),
		Stopwords:      splitCSV(getenv("SEARCH_STOPWORDS", "")),

		Storage: StorageConfig{
			LocalRoot: getenv("STORAGE_LOCAL_ROOT", "data/recordings"),
			CacheTTL:  getdur("STORAGE_PROVIDER_CACHE_TTL", 10*time.Minute),
		},
		Vendor: VendorConfig{
			BaseURL:     strings.TrimRight(getenv("VENDOR_API_BASE_URL", "https://api.plaud.ai"), "/"),
			Timeout:     getdur("VENDOR_TIMEOUT", 30*time.Second),
			PageSize:    getint("VENDOR_PAGE_SIZE", 50),
			Concurrency: getint("VENDOR_SYNC_CONCURRENCY", 4),
		},
		Bot: BotConfig{
			Enabled:        getbool("BOT_ENABLED", false),
			Token:          getenv("BOT_TOKEN", ""),
			BaseURL:        strings.TrimRight(getenv("BOT_API_BASE_URL", "https://api.telegram.org"), "/"),
			AllowedSenders: splitInt64s(getenv("BOT_ALLOWED_SENDERS", "")),
			PollTimeout:    getdur("BOT_POLL_TIMEOUT", 30*time.Second),
			RequestTimeout: getdur("BOT_REQUEST_TIMEOUT", 10*time.Second),
			Backoff:        getdur("BOT_BACKOFF", 5*time.Second),
			PersistCursor:  getbool("BOT_PERSIST_CURSOR", true),
			FallbackUser:   getbool("BOT_FALLBACK_FIRST_USER", true),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-recorder-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.TranscriptMax < 0 {
		return cfg, errors.New("TRANSCRIPT_MAX_RUNES must be >= 0")
	}
	if strings.TrimSpace(cfg.Storage.LocalRoot) == "" {
		return cfg, errors.New("STORAGE_LOCAL_ROOT must not be empty")
	}
	if cfg.Storage.CacheTTL <= 0 {
		return cfg, errors.New("STORAGE_PROVIDER_CACHE_TTL must be > 0")
	}
	if cfg.Vendor.Timeout <= 0 {
		return cfg, errors.New("VENDOR_TIMEOUT must be > 0")
	}
	if cfg.Vendor.PageSize < 1 || cfg.Vendor.PageSize > 500 {
		return cfg, errors.New("VENDOR_PAGE_SIZE must be in [1,500]")
	}
	if cfg.Vendor.Concurrency < 1 {
		return cfg, errors.New("VENDOR_SYNC_CONCURRENCY must be >= 1")
	}
	if cfg.Bot.Enabled && strings.TrimSpace(cfg.Bot.Token) == "" {
		return cfg, errors.New("BOT_TOKEN is required when BOT_ENABLED")
	}
	if cfg.Bot.PollTimeout <= 0 || cfg.Bot.RequestTimeout <= 0 || cfg.Bot.Backoff <= 0 {
		return cfg, errors.New("BOT_POLL_TIMEOUT, BOT_REQUEST_TIMEOUT and BOT_BACKOFF must be positive")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitInt64s parses a CSV of integers; malformed entries are dropped.
func splitInt64s(s string) []int64 {
	parts := splitCSV(s)
	if len(parts) == 0 {
		return nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
