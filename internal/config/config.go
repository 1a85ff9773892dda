package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the runtime configuration for the enrichment service.
type Config struct {
	Database DatabaseConfig
	Enrich   EnrichConfig
	LogLevel string
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// EnrichConfig controls the ingredient enrichment pipeline: where the two
// external sources live, how hard they may be queried, and the default
// behavior of the merge step.
type EnrichConfig struct {
	ChemSourceURL string
	OdorSourceURL string

	ChemInterval time.Duration
	OdorInterval time.Duration
	Timeout      time.Duration
	CacheTTL     time.Duration
	RetryLimit   int

	DefaultOwnerEmail string
	Overwrite         bool
}

// Load inspects the environment and builds a Config value.
func Load() (Config, error) {
	cfg := Config{
		LogLevel: firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
	}

	cfg.Database = DatabaseConfig{
		URL: firstNonEmpty(
			os.Getenv("DATABASE_URL"),
			os.Getenv("DB_URL"),
			"",
		),
	}

	var err error
	if cfg.Database.MaxIdleConns, err = intEnv("DB_MAX_IDLE_CONNS", 0); err != nil {
		return Config{}, err
	}
	if cfg.Database.MaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", 0); err != nil {
		return Config{}, err
	}
	if cfg.Database.ConnMaxLifetime, err = durationEnv("DB_CONN_MAX_LIFETIME", 0); err != nil {
		return Config{}, err
	}
	if cfg.Database.ConnMaxIdleTime, err = durationEnv("DB_CONN_MAX_IDLE_TIME", 0); err != nil {
		return Config{}, err
	}

	cfg.Enrich = EnrichConfig{
		ChemSourceURL: firstNonEmpty(
			os.Getenv("CHEM_SOURCE_URL"),
			"https://pubchem.ncbi.nlm.nih.gov/rest/pug",
		),
		OdorSourceURL: firstNonEmpty(
			os.Getenv("ODOR_SOURCE_URL"),
			"http://www.thegoodscentscompany.com",
		),
		DefaultOwnerEmail: strings.TrimSpace(os.Getenv("DEFAULT_OWNER_EMAIL")),
	}

	if cfg.Enrich.ChemInterval, err = durationEnv("CHEM_SOURCE_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.OdorInterval, err = durationEnv("ODOR_SOURCE_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.Timeout, err = durationEnv("SOURCE_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.CacheTTL, err = durationEnv("CACHE_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.RetryLimit, err = intEnv("RETRY_LIMIT", 3); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.Overwrite, err = boolEnv("ENRICH_OVERWRITE", false); err != nil {
		return Config{}, err
	}

	if cfg.Enrich.RetryLimit < 0 {
		return Config{}, fmt.Errorf("RETRY_LIMIT must not be negative")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return value, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
