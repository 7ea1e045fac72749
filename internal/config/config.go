package config

import (
	"os"
	"strconv"
)

type Config struct {
	LogLevel string

	SchemaDir string
	CacheDir  string

	BatchWorkers int

	AggTopN             int
	AggIncludeCancelled bool

	RateTablePath string

	PostgresDSN string
	ExportDir   string
	MetricsPort string
}

func Load() Config {
	return Config{
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		SchemaDir: mustEnv("SCHEMA_DIR", ""),
		CacheDir:  mustEnv("CACHE_DIR", "./data/cache"),

		BatchWorkers: mustEnvInt("BATCH_WORKERS", 8),

		AggTopN:             mustEnvInt("AGG_TOP_N", 10),
		AggIncludeCancelled: mustEnvBool("AGG_INCLUDE_CANCELLED", false),

		RateTablePath: mustEnv("RATE_TABLE_PATH", ""),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),
		ExportDir:   mustEnv("EXPORT_DIR", ""),
		MetricsPort: mustEnv("METRICS_PORT", ""),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
