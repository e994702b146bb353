/**
 * @description
 * Configuration loader for the Halcyon vault ledger services.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (Database URL, RPC endpoints) are missing.
 * - RPC_URLS is a comma-separated priority list; the chain client tries them in order.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	Chain      ChainConfig
	Indexer    IndexerConfig
	Supervisor SupervisorConfig
	Kpi        KpiConfig
}

// ServerConfig holds process-level settings
type ServerConfig struct {
	Env string // "development" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// ChainConfig holds RPC endpoint settings
type ChainConfig struct {
	RPCURLs []string // tried in priority order
	Name    string   // chain identifier stored on users, e.g. "ethereum"
}

// IndexerConfig holds per-vault ingestion settings
type IndexerConfig struct {
	LogChunkSize uint64        // max block range per getLogs call
	PollInterval time.Duration // tail polling cadence once synced
}

// SupervisorConfig holds task restart policy settings
type SupervisorConfig struct {
	BaseRestartDelay    time.Duration
	MaxRestartAttempts  int
	StableAfter         time.Duration
	HealthCheckInterval time.Duration
	DeadTasksThreshold  float64 // fraction of permanently-dead tasks that is fatal
}

// KpiConfig holds batch analytics settings
type KpiConfig struct {
	CronSpec     string        // robfig/cron spec for the daily run
	RiskFreeRate float64       // annualized, e.g. 0.05
	NavCacheTTL  time.Duration // share price cache TTL
	StartupDelay time.Duration // grace period before the first run
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Env: getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Chain: ChainConfig{
			RPCURLs: splitList(getEnv("RPC_URLS", "")),
			Name:    getEnv("CHAIN_NAME", "ethereum"),
		},
		Indexer: IndexerConfig{
			LogChunkSize: uint64(getEnvAsInt("INDEXER_LOG_CHUNK_SIZE", 5000)),
			PollInterval: getEnvAsDuration("INDEXER_POLL_INTERVAL", 12*time.Second),
		},
		Supervisor: SupervisorConfig{
			BaseRestartDelay:    getEnvAsDuration("SUPERVISOR_BASE_RESTART_DELAY", 500*time.Millisecond),
			MaxRestartAttempts:  getEnvAsInt("SUPERVISOR_MAX_RESTART_ATTEMPTS", 5),
			StableAfter:         getEnvAsDuration("SUPERVISOR_STABLE_AFTER", 2*time.Minute),
			HealthCheckInterval: getEnvAsDuration("SUPERVISOR_HEALTH_CHECK_INTERVAL", 5*time.Second),
			DeadTasksThreshold:  getEnvAsFloat("SUPERVISOR_DEAD_TASKS_THRESHOLD", 0.0),
		},
		Kpi: KpiConfig{
			CronSpec:     getEnv("KPI_CRON", "0 0 * * *"),
			RiskFreeRate: getEnvAsFloat("KPI_RISK_FREE_RATE", 0.05),
			NavCacheTTL:  getEnvAsDuration("KPI_NAV_CACHE_TTL", 5*time.Minute),
			StartupDelay: getEnvAsDuration("KPI_STARTUP_DELAY", 20*time.Second),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.Chain.RPCURLs) == 0 {
		return fmt.Errorf("RPC_URLS is required (comma-separated, tried in priority order)")
	}
	if cfg.Supervisor.DeadTasksThreshold < 0 || cfg.Supervisor.DeadTasksThreshold > 1 {
		return fmt.Errorf("SUPERVISOR_DEAD_TASKS_THRESHOLD must be within [0, 1]")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
