// internal/stages/l2/config.go
package l2

import (
	"time"

	"admission-workers/internal/common/config"
)

// Config is the batch invocation policy for the L2 stage.
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
		Path:         "/predict/l2",
		ChunkSize:    svc.L2ChunkSizeInputArray,
		Concurrency:  svc.BatchConcurrency,
		MaxRetries:   svc.MaxRetries,
		BaseDelay:    svc.RetryBaseDelay(),
		MaxDelay:     30 * time.Second,
		RequestDelay: time.Duration(svc.L2ChunkDelayMs) * time.Millisecond,
	}
}
