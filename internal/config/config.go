// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database paths, rate limiting, observability, and the credentials
// for the two external collaborators: the Retell call-hosting provider and
// the LLM feedback generator.
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
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RetellConfig holds credentials and endpoints for the call-hosting provider.
type RetellConfig struct {
	APIKey         string        // RETELL_API_KEY (bearer token)
	DefaultAgentID string        // RETELL_AGENT_ID (pre-provisioned fallback agent)
	BaseURL        string        // RETELL_BASE_URL (override for tests/staging)
	Timeout        time.Duration // RETELL_TIMEOUT per-request deadline
}

// FeedbackConfig selects and configures the LLM feedback generator.
// Provider is one of "groq", "openrouter", or "gemini"; the matching API key
// must be set. Groq and OpenRouter speak the same chat-completions wire
// format and differ only in base URL and model.
type FeedbackConfig struct {
	Provider string        // FEEDBACK_PROVIDER
	Timeout  time.Duration // FEEDBACK_TIMEOUT bound on a single generation call

	GroqAPIKey string // GROQ_API_KEY
	GroqModel  string // GROQ_MODEL

	OpenRouterAPIKey string // OPENROUTER_API_KEY
	OpenRouterModel  string // OPENROUTER_MODEL

	GeminiAPIKey string // GEMINI_API_KEY
	GeminiModel  string // GEMINI_MODEL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath     string // SQLite path
	AdminToken string // ADMIN_TOKEN bearer token gating the /admin surface

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// External collaborators
	Retell   RetellConfig
	Feedback FeedbackConfig

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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:     getenv("DB_PATH", "interviews.db"),
		AdminToken: getenv("ADMIN_TOKEN", ""),

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

		// Call-hosting provider
		Retell: RetellConfig{
			APIKey:         getenv("RETELL_API_KEY", ""),
			DefaultAgentID: getenv("RETELL_AGENT_ID", ""),
			BaseURL:        getenv("RETELL_BASE_URL", "https://api.retellai.com"),
			Timeout:        getdur("RETELL_TIMEOUT", 15*time.Second),
		},

		// Feedback generator
		Feedback: FeedbackConfig{
			Provider:         strings.ToLower(getenv("FEEDBACK_PROVIDER", "groq")),
			Timeout:          getdur("FEEDBACK_TIMEOUT", 45*time.Second),
			GroqAPIKey:       getenv("GROQ_API_KEY", ""),
			GroqModel:        getenv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			OpenRouterAPIKey: getenv("OPENROUTER_API_KEY", ""),
			OpenRouterModel:  getenv("OPENROUTER_MODEL", "meta-llama/llama-3.3-70b-instruct:free"),
			GeminiAPIKey:     getenv("GEMINI_API_KEY", ""),
			GeminiModel:      getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-interview-backend"),
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
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if strings.TrimSpace(cfg.Retell.APIKey) == "" {
		return cfg, errors.New("RETELL_API_KEY must not be empty")
	}
	if strings.TrimSpace(cfg.Retell.DefaultAgentID) == "" {
		return cfg, errors.New("RETELL_AGENT_ID must not be empty")
	}
	if cfg.Retell.Timeout <= 0 || cfg.Feedback.Timeout <= 0 {
		return cfg, errors.New("provider timeouts must be positive durations")
	}
	switch cfg.Feedback.Provider {
	case "groq":
		if cfg.Feedback.GroqAPIKey == "" {
			return cfg, errors.New("GROQ_API_KEY must be set when FEEDBACK_PROVIDER=groq")
		}
	case "openrouter":
		if cfg.Feedback.OpenRouterAPIKey == "" {
			return cfg, errors.New("OPENROUTER_API_KEY must be set when FEEDBACK_PROVIDER=openrouter")
		}
	case "gemini":
		if cfg.Feedback.GeminiAPIKey == "" {
			return cfg, errors.New("GEMINI_API_KEY must be set when FEEDBACK_PROVIDER=gemini")
		}
	default:
		return cfg, errors.New("FEEDBACK_PROVIDER must be one of: groq, openrouter, gemini")
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
