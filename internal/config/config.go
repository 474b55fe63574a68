package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config is the top-level configuration loaded from file and environment.
// Environment variables (JOBQ_*) overlay file values.
type Config struct {
	HTTPAddr string `json:"httpAddr" env:"JOBQ_HTTP_ADDR"`
	DataDir  string `json:"dataDir" env:"JOBQ_DATA_DIR"`
	// Fsync is one of always|interval|never.
	Fsync string `json:"fsync" env:"JOBQ_FSYNC"`

	DefaultTenant string `json:"defaultTenant" env:"JOBQ_DEFAULT_TENANT"`

	// RunToken authenticates timer-triggered worker runs. Empty disables the
	// timer path entirely.
	RunToken string `json:"runToken" env:"JOBQ_RUN_TOKEN"`
	// TriggerRoles may trigger manual worker runs; OperatorRoles may also
	// requeue dead-lettered jobs.
	TriggerRoles  []string `json:"triggerRoles" env:"JOBQ_TRIGGER_ROLES" envSeparator:","`
	OperatorRoles []string `json:"operatorRoles" env:"JOBQ_OPERATOR_ROLES" envSeparator:","`

	Queue QueueDefaults `json:"queue"`

	LogLevel  string `json:"logLevel" env:"JOBQ_LOG_LEVEL"`
	LogFormat string `json:"logFormat" env:"JOBQ_LOG_FORMAT"`
}

// QueueDefaults captures per-job baseline limits.
type QueueDefaults struct {
	MaxAttempts   int   `json:"maxAttempts" env:"JOBQ_MAX_ATTEMPTS"`
	LeaseMs       int64 `json:"leaseMs" env:"JOBQ_LEASE_MS"`
	BackoffBaseMs int64 `json:"backoffBaseMs" env:"JOBQ_BACKOFF_BASE_MS"`
	BackoffCapMs  int64 `json:"backoffCapMs" env:"JOBQ_BACKOFF_CAP_MS"`
	RunBatchLimit int   `json:"runBatchLimit" env:"JOBQ_RUN_BATCH_LIMIT"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:      ":8464",
		Fsync:         "always",
		DefaultTenant: "default",
		TriggerRoles:  []string{"accountant", "admin"},
		OperatorRoles: []string{"admin"},
		Queue: QueueDefaults{
			MaxAttempts:   5,
			LeaseMs:       120_000,
			BackoffBaseMs: 30_000,
			BackoffCapMs:  3_600_000,
			RunBatchLimit: 50,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads configuration from a JSON file when path is non-empty, then
// overlays JOBQ_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: env overlay: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Queue.MaxAttempts <= 0 {
		return errors.New("config: queue.maxAttempts must be positive")
	}
	if c.Queue.LeaseMs <= 0 {
		return errors.New("config: queue.leaseMs must be positive")
	}
	if c.Queue.BackoffBaseMs <= 0 || c.Queue.BackoffCapMs < c.Queue.BackoffBaseMs {
		return errors.New("config: backoff base/cap out of range")
	}
	return nil
}
