package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend selects where conversation state lives.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory" // Single-node, in-process (default)
	StoreRedis  StoreBackend = "redis"  // Shared store for multi-node deployments
)

// AuditBackend selects where audit events are written.
type AuditBackend string

const (
	AuditNone     AuditBackend = "none"     // Auditing disabled
	AuditFile     AuditBackend = "file"     // Append-only JSONL file (default)
	AuditPostgres AuditBackend = "postgres" // Shared Postgres table
)

// Config holds global settings for the Guardline gateway.
// All settings can be configured via environment variables or programmatically.
type Config struct {
	// === Indicator Catalog ===
	CatalogPath string // Optional YAML catalog file; empty = built-in catalog

	// === Conversation Tracking ===
	HistoryWindow          int           // Bounded per-conversation turn history (default: 20)
	AmplificationThreshold int           // Passive AI turns before amplification risk (default: 5)
	SessionTTL             time.Duration // Idle session lifetime (default: 1 hour)
	WaitDelay              time.Duration // WAIT gate hold before a crisis response auto-releases

	// === Session Store ===
	StoreBackend StoreBackend // "memory" or "redis"
	RedisAddr    string       // host:port, required for the redis backend

	// === Audit Trail ===
	AuditBackend AuditBackend
	AuditLogPath string // JSONL audit file (default: "guardline_audit.jsonl")
	PostgresDSN  string // Connection string, required for the postgres backend

	// === Upstream Model (proxy mode) ===
	UpstreamBaseURL  string        // OpenAI-compatible endpoint
	UpstreamAPIKey   string        // Bearer key for the upstream
	UpstreamModel    string        // Model identifier
	UpstreamTimeout  time.Duration // Per-call timeout around the external model
	MaxUpstreamCalls int           // Concurrent upstream call cap
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		CatalogPath: GetEnv("GUARDLINE_CATALOG", ""),

		HistoryWindow:          clampInt(GetEnvInt("GUARDLINE_HISTORY_WINDOW", 20), 1, 1000),
		AmplificationThreshold: clampInt(GetEnvInt("GUARDLINE_AMPLIFICATION_THRESHOLD", 5), 1, 100),
		SessionTTL:             time.Duration(GetEnvInt("GUARDLINE_SESSION_TTL_SECONDS", 3600)) * time.Second,
		WaitDelay:              time.Duration(GetEnvInt("GUARDLINE_WAIT_DELAY_SECONDS", 30)) * time.Second,

		StoreBackend: StoreBackend(GetEnv("GUARDLINE_STORE", string(StoreMemory))),
		RedisAddr:    GetEnv("GUARDLINE_REDIS_ADDR", "localhost:6379"),

		AuditBackend: detectAuditBackend(),
		AuditLogPath: GetEnv("GUARDLINE_AUDIT_LOG", "guardline_audit.jsonl"),
		PostgresDSN:  GetEnv("GUARDLINE_POSTGRES_DSN", ""),

		UpstreamBaseURL:  GetEnv("GUARDLINE_UPSTREAM_URL", "https://api.openai.com/v1"),
		UpstreamAPIKey:   GetEnv("GUARDLINE_UPSTREAM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		UpstreamModel:    GetEnv("GUARDLINE_UPSTREAM_MODEL", "gpt-4o-mini"),
		UpstreamTimeout:  time.Duration(GetEnvInt("GUARDLINE_UPSTREAM_TIMEOUT_MS", 30000)) * time.Millisecond,
		MaxUpstreamCalls: clampInt(GetEnvInt("GUARDLINE_MAX_UPSTREAM_CALLS", 64), 1, 4096),
	}
}

// NewStrictConfig tightens the tracker for high-sensitivity deployments:
// shorter passive streaks before amplification risk flips on, and a longer
// mandatory pause before crisis responses go out.
func NewStrictConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.AmplificationThreshold = 3
	cfg.WaitDelay = 60 * time.Second
	return cfg
}

// detectAuditBackend picks the audit backend from the environment. An
// explicit GUARDLINE_AUDIT wins; otherwise a Postgres DSN implies postgres
// and the default is a local JSONL file.
func detectAuditBackend() AuditBackend {
	if b := os.Getenv("GUARDLINE_AUDIT"); b != "" {
		return AuditBackend(b)
	}
	if os.Getenv("GUARDLINE_POSTGRES_DSN") != "" {
		return AuditPostgres
	}
	return AuditFile
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: redis store selected but GUARDLINE_REDIS_ADDR is empty")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}

	switch c.AuditBackend {
	case AuditNone:
	case AuditFile:
		if c.AuditLogPath == "" {
			return fmt.Errorf("config: file audit selected but GUARDLINE_AUDIT_LOG is empty")
		}
	case AuditPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: postgres audit selected but GUARDLINE_POSTGRES_DSN is empty")
		}
	default:
		return fmt.Errorf("config: unknown audit backend %q", c.AuditBackend)
	}

	if c.HistoryWindow <= 0 {
		return fmt.Errorf("config: history window must be positive")
	}
	if c.AmplificationThreshold <= 0 {
		return fmt.Errorf("config: amplification threshold must be positive")
	}
	if c.WaitDelay < 0 {
		return fmt.Errorf("config: wait delay must not be negative")
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}

// clampInt ensures a value is within bounds
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Helper functions for environment variable parsing
// These are exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
