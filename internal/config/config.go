package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Server
	Port string

	// Database
	DBDriver string // "sqlite" | "postgres"
	DBPath   string // SQLite path
	DBUrl    string // Postgres DSN

	// Auth
	AuthMode string // "local_open" | "token"
	APIToken string // bearer token when AuthMode == "token"

	// Settings store
	RedisAddr            string // empty = in-process store
	RedisPassword        string
	RedisDB              int
	DecompositionEnabled bool // default when the store has no value or is unreachable

	// Providers
	ProvidersFile     string // optional YAML seed for model configs
	LLMTimeoutSeconds int

	// Archive
	MinioEndpoint  string // empty = retention sweeps delete without archiving
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Retention
	RetentionDays        int // 0 = keep forever
	SweepIntervalMinutes int

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		DBDriver:             getEnv("STEPWISE_DB_DRIVER", "sqlite"),
		DBPath:               getEnv("STEPWISE_DB_PATH", "./data/stepwise.db"),
		DBUrl:                getEnv("STEPWISE_DATABASE_URL", ""),
		AuthMode:             getEnv("STEPWISE_AUTH_MODE", "local_open"),
		APIToken:             getEnv("STEPWISE_API_TOKEN", ""),
		RedisAddr:            getEnv("STEPWISE_REDIS_ADDR", ""),
		RedisPassword:        getEnv("STEPWISE_REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("STEPWISE_REDIS_DB", 0),
		DecompositionEnabled: getEnvBool("STEPWISE_DECOMPOSITION_ENABLED", true),
		ProvidersFile:        getEnv("STEPWISE_PROVIDERS_FILE", ""),
		LLMTimeoutSeconds:    getEnvInt("STEPWISE_LLM_TIMEOUT_SECONDS", 30),
		MinioEndpoint:        getEnv("STEPWISE_MINIO_ENDPOINT", ""),
		MinioAccessKey:       getEnv("STEPWISE_MINIO_ACCESS_KEY", ""),
		MinioSecretKey:       getEnv("STEPWISE_MINIO_SECRET_KEY", ""),
		MinioBucket:          getEnv("STEPWISE_MINIO_BUCKET", "stepwise-archive"),
		MinioUseSSL:          getEnvBool("STEPWISE_MINIO_USE_SSL", false),
		RetentionDays:        getEnvInt("STEPWISE_RETENTION_DAYS", 30),
		SweepIntervalMinutes: getEnvInt("STEPWISE_SWEEP_INTERVAL_MINUTES", 60),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
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
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
