package config

import (
	"log"
	"strings"
	"time"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment     string
	Addr            string
	DatabaseURL     string
	StorageDriver   string
	JWTSecret       string
	SessionTTL      time.Duration
	SessionPrefix   string
	RedisAddr       string
	RedisPass       string
	RedisDB         int
	LoginRateLimit  int
	SignupRateLimit int
	RateLimitWindow time.Duration
	CORSOrigins     []string
	TrustedProxies  []string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables. When
// CONFIG_FILE points at a YAML file its keys fill in anything the
// environment leaves unset.
func LoadAPIConfig() APIConfig {
	if path := GetString("CONFIG_FILE", ""); path != "" {
		if err := LoadFile(path); err != nil {
			log.Printf("config file %s ignored: %v", path, err)
		}
	}
	return APIConfig{
		Environment:     GetString("APP_ENV", "development"),
		Addr:            GetString("API_ADDR", ":8080"),
		DatabaseURL:     GetString("DATABASE_URL", "postgres://vending:vending@db:5432/vending?sslmode=disable"),
		StorageDriver:   GetString("STORAGE_DRIVER", "postgres"),
		JWTSecret:       GetString("JWT_SECRET", "supersecuresecret"),
		SessionTTL:      GetDuration("SESSION_TTL", 30*time.Minute),
		SessionPrefix:   GetString("SESSION_PREFIX", "session:"),
		RedisAddr:       GetString("REDIS_ADDR", ""),
		RedisPass:       GetString("REDIS_PASSWORD", ""),
		RedisDB:         GetInt("REDIS_DB", 0),
		LoginRateLimit:  GetInt("LOGIN_RATE_LIMIT", 10),
		SignupRateLimit: GetInt("SIGNUP_RATE_LIMIT", 5),
		RateLimitWindow: GetDuration("RATE_LIMIT_WINDOW", time.Minute),
		CORSOrigins:     splitList(GetString("CORS_ALLOWED_ORIGINS", "*")),
		TrustedProxies:  splitList(GetString("TRUSTED_PROXIES", "")),
		LogLevel:        GetString("LOG_LEVEL", "info"),
		ShutdownTimeout: GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
