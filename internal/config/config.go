// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, relay
// dispatch, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-sensorhub-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RelayConfig defines the downstream relay dispatch settings.
type RelayConfig struct {
	TargetURL   string        // RELAY_TARGET_URL: downstream receiver endpoint; empty wires the local mock
	MaxAttempts int           // RELAY_MAX_ATTEMPTS: total dispatch attempts per publish
	BackoffBase time.Duration // RELAY_BACKOFF_BASE: wait after the first failed attempt, doubling per attempt
	FailRate    float64       // RELAY_FAIL_RATE: mock receiver failure probability [0..1]
}

// BillingConfig defines the mock payment provider settings.
type BillingConfig struct {
	PayFailRate float64 // PAY_FAIL_RATE: mock provider decline probability [0..1]
}

// LimitConfig defines one fixed-window admission limit.
type LimitConfig struct {
	Limit  int64         // requests allowed per window
	Window time.Duration // window length
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

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath      string // SQLite path
	SeedOnStart bool   // insert the demo device and client on boot

	// Edge rate limiting (token bucket per IP, abuse control only; the
	// per-device and per-client fixed windows are enforced in the services)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Domain fixed windows
	TelemetryLimit LimitConfig // per device
	RelayLimit     LimitConfig // per client

	// Relay dispatch
	Relay RelayConfig

	// Billing
	Billing BillingConfig

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

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/")),

		// App
		DBPath:      getenv("DB_PATH", "app.db"),
		SeedOnStart: getbool("SEED_ON_START", true),

		// Edge rate limiting. Generous by design: the tight per-identity
		// windows live in the services, this bucket only curbs floods.
		RateRPS:   getfloat("RATE_RPS", 50.0),
		RateBurst: getint("RATE_BURST", 100),

		// Domain fixed windows
		TelemetryLimit: LimitConfig{
			Limit:  int64(getint("TELEMETRY_RATE_LIMIT", 5)),
			Window: getdur("TELEMETRY_RATE_WINDOW", time.Second),
		},
		RelayLimit: LimitConfig{
			Limit:  int64(getint("RELAY_RATE_LIMIT", 5)),
			Window: getdur("RELAY_RATE_WINDOW", time.Second),
		},

		// Relay dispatch
		Relay: RelayConfig{
			TargetURL:   getenv("RELAY_TARGET_URL", ""),
			MaxAttempts: getint("RELAY_MAX_ATTEMPTS", 3),
			BackoffBase: getdur("RELAY_BACKOFF_BASE", time.Second),
			FailRate:    getfloat("RELAY_FAIL_RATE", 0.3),
		},

		// Billing
		Billing: BillingConfig{
			PayFailRate: getfloat("PAY_FAIL_RATE", 0.2),
		},

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-sensorhub-backend"),
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
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.TelemetryLimit.Limit < 1 || cfg.RelayLimit.Limit < 1 {
		return cfg, errors.New("fixed-window limits must be >= 1")
	}
	if cfg.TelemetryLimit.Window <= 0 || cfg.RelayLimit.Window <= 0 {
		return cfg, errors.New("fixed-window durations must be > 0")
	}
	if cfg.Relay.MaxAttempts < 1 {
		return cfg, errors.New("RELAY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Relay.BackoffBase <= 0 {
		return cfg, errors.New("RELAY_BACKOFF_BASE must be > 0")
	}
	if cfg.Relay.FailRate < 0 || cfg.Relay.FailRate > 1 {
		return cfg, errors.New("RELAY_FAIL_RATE must be in [0,1]")
	}
	if cfg.Billing.PayFailRate < 0 || cfg.Billing.PayFailRate > 1 {
		return cfg, errors.New("PAY_FAIL_RATE must be in [0,1]")
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
