// internal/stages/l3/config.go
package l3

import (
	"time"

	"admission-workers/internal/common/config"
)

// Config is the batch invocation policy for the L3 stage.
type Config struct {
	Path         string
	ChunkSize    int
	Concurrency  int
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	RequestDelay time.Duration
}

func LoadConfig(svc config.ServiceConfig) *Config {
	return &Config{
		Path:         "/predict/l3",
		ChunkSize:    svc.L3ChunkSizeInputArray,
		Concurrency:  svc.BatchConcurrency,
		MaxRetries:   svc.MaxRetries,
		BaseDelay:    svc.RetryBaseDelay(),
		MaxDelay:     30 * time.Second,
		RequestDelay: time.Duration(svc.L3ChunkDelayMs) * time.Millisecond,
	}
}
