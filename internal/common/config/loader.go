// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SERVICE_SERVER_HOSTNAME
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay (config.development.yaml etc.)
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (running from different directories)
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "admission-workers"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.App.OpsPort == 0 {
		cfg.App.OpsPort = 8080
	}

	if cfg.Service.ServerHostname == "" {
		cfg.Service.ServerHostname = "127.0.0.1"
	}
	if cfg.Service.ServerPort == 0 {
		cfg.Service.ServerPort = 8000
	}
	if cfg.Service.TimeoutInMs == 0 {
		cfg.Service.TimeoutInMs = 30000
	}
	if cfg.Service.BatchConcurrency == 0 {
		cfg.Service.BatchConcurrency = 2
	}
	if cfg.Service.MaxRetries == 0 {
		cfg.Service.MaxRetries = 2
	}
	if cfg.Service.RetryBaseDelayMs == 0 {
		cfg.Service.RetryBaseDelayMs = 500
	}
	if cfg.Service.L1ChunkSizeInputArray == 0 {
		cfg.Service.L1ChunkSizeInputArray = 20
	}
	if cfg.Service.L2ChunkSizeInputArray == 0 {
		cfg.Service.L2ChunkSizeInputArray = 10
	}
	if cfg.Service.L3ChunkSizeInputArray == 0 {
		cfg.Service.L3ChunkSizeInputArray = 5
	}

	if cfg.Ocr.BaseURL == "" {
		cfg.Ocr.BaseURL = "http://127.0.0.1:8081"
	}
	if cfg.Ocr.TimeoutInMs == 0 {
		cfg.Ocr.TimeoutInMs = 60000
	}
	if cfg.Ocr.ChunkSize == 0 {
		cfg.Ocr.ChunkSize = 3
	}
	if cfg.Ocr.Concurrency == 0 {
		cfg.Ocr.Concurrency = 2
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.TTLSec == 0 {
		cfg.Database.Redis.TTLSec = 300
	}
	if cfg.Database.Elasticsearch.ProgramIndex == "" {
		cfg.Database.Elasticsearch.ProgramIndex = "admission-programs"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Service.ServerHostname == "" {
		return fmt.Errorf("service.server_hostname is required")
	}
	if cfg.Service.TimeoutInMs <= 0 {
		return fmt.Errorf("service.timeout_in_ms must be positive")
	}
	if cfg.Service.BatchConcurrency <= 0 {
		return fmt.Errorf("service.batch_concurrency must be positive")
	}
	if cfg.Service.MaxRetries < 0 {
		return fmt.Errorf("service.max_retries must not be negative")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	return nil
}
