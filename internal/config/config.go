// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the API server and the admin CLI.
type Config struct {
	Env      string
	Port     string // gRPC listen port
	HTTPAddr string // metrics, health and websocket watch

	// StoreBackend selects the storage origin: memory, file, mongo, redis, minio or postgres.
	StoreBackend string
	StoreDir     string
	StorageKey   string

	MongoURI      string
	MongoDatabase string
	RedisURL      string
	DatabaseURL   string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOSecure    bool

	PollInterval time.Duration

	JWTSecret    string
	JWTKeys      map[string]string // kid -> secret, optional rotation set
	JWTActiveKid string

	RateLimitRPM int

	NotifyEnabled    bool
	NotifyPermission string // initial decision when none is persisted: default, granted or denied

	LogDir   string
	LogLevel string

	AdminKeyHash string

	TLSCert    string
	TLSKey     string
	RequireTLS bool
}

// Load reads a .env file when one exists and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:              getEnv("ENV", "development"),
		Port:             getEnv("PORT", "50051"),
		HTTPAddr:         fixPort(getEnv("HTTP_ADDR", ":8090")),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", "file")),
		StoreDir:         getEnv("STORE_DIR", "./data"),
		StorageKey:       getEnv("STORAGE_KEY", "fleet_support_chats"),
		MongoURI:         getEnv("MONGODB_URI", ""),
		MongoDatabase:    getEnv("MONGODB_DATABASE", "support_db"),
		RedisURL:         getEnv("REDIS_URL", ""),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MinIOEndpoint:    getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:   getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:   getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:      getEnv("MINIO_BUCKET", "support-chat"),
		MinIOSecure:      getEnvBool("MINIO_SECURE", false),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 2*time.Second),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTKeys:          parseKeys(getEnv("JWT_KEYS", "")),
		JWTActiveKid:     getEnv("JWT_ACTIVE_KID", ""),
		RateLimitRPM:     getEnvInt("RATE_LIMIT_RPM", 30),
		NotifyEnabled:    getEnvBool("NOTIFY_ENABLED", true),
		NotifyPermission: strings.ToLower(getEnv("NOTIFY_PERMISSION", "default")),
		LogDir:           getEnv("LOG_DIR", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AdminKeyHash:     getEnv("ADMIN_KEY_HASH", ""),
		TLSCert:          getEnv("TLS_CERT", ""),
		TLSKey:           getEnv("TLS_KEY", ""),
		RequireTLS:       getEnvBool("REQUIRE_TLS", false),
	}
}

// IsProduction reports whether ENV is set to production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// parseKeys reads "kid:secret,kid2:secret2". Malformed pairs are skipped.
func parseKeys(v string) map[string]string {
	if v == "" {
		return nil
	}
	keys := map[string]string{}
	for _, p := range strings.Split(v, ",") {
		parts := strings.SplitN(strings.TrimSpace(p), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		keys[parts[0]] = parts[1]
	}
	return keys
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
