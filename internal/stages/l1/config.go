// internal/stages/l1/config.go
package l1

import (
	"time"

	"admission-workers/internal/common/config"
)

// Config is the batch invocation policy for the L1 stage.
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
		Path:         "/predict/l1",
		ChunkSize:    svc.L1ChunkSizeInputArray,
		Concurrency:  svc.BatchConcurrency,
		MaxRetries:   svc.MaxRetries,
		BaseDelay:    svc.RetryBaseDelay(),
		MaxDelay:     30 * time.Second,
		RequestDelay: time.Duration(svc.L1ChunkDelayMs) * time.Millisecond,
	}
}
