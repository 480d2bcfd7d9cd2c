// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Service       ServiceConfig      `mapstructure:"service"`
	Ocr           OcrConfig          `mapstructure:"ocr"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	OpsPort     int    `mapstructure:"ops_port"`
}

// ServiceConfig holds settings for the remote prediction service and the
// batch invocation policy of each stage.
type ServiceConfig struct {
	ServerHostname string `mapstructure:"server_hostname"`
	ServerPort     int    `mapstructure:"server_port"`
	ServerPath     string `mapstructure:"server_path"`
	TimeoutInMs    int    `mapstructure:"timeout_in_ms"`

	BatchConcurrency int `mapstructure:"batch_concurrency"`
	MaxRetries       int `mapstructure:"max_retries"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms"`

	L1ChunkSizeInputArray int `mapstructure:"l1_chunk_size_input_array"`
	L1ChunkDelayMs        int `mapstructure:"l1_chunk_delay_ms"`
	L2ChunkSizeInputArray int `mapstructure:"l2_chunk_size_input_array"`
	L2ChunkDelayMs        int `mapstructure:"l2_chunk_delay_ms"`
	L3ChunkSizeInputArray int `mapstructure:"l3_chunk_size_input_array"`
	L3ChunkDelayMs        int `mapstructure:"l3_chunk_delay_ms"`
}

// BaseURL assembles the predictor base URL from hostname, port and path.
func (s ServiceConfig) BaseURL() string {
	base := fmt.Sprintf("http://%s:%d", s.ServerHostname, s.ServerPort)
	if s.ServerPath != "" {
		base += s.ServerPath
	}
	return base
}

// Timeout returns the per-request timeout as a duration.
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutInMs) * time.Millisecond
}

// RetryBaseDelay returns the backoff base delay as a duration.
func (s ServiceConfig) RetryBaseDelay() time.Duration {
	return time.Duration(s.RetryBaseDelayMs) * time.Millisecond
}

// OcrConfig holds settings for the external score-extraction service.
type OcrConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	TimeoutInMs int    `mapstructure:"timeout_in_ms"`
	ChunkSize   int    `mapstructure:"chunk_size"`
	Concurrency int    `mapstructure:"concurrency"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

func (o OcrConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutInMs) * time.Millisecond
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLSec   int    `mapstructure:"ttl_sec"`
}

func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSec) * time.Second
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ProgramIndex string   `mapstructure:"program_index"`
}

// NotificationConfig holds settings for prediction completion notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
