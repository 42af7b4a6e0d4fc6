package cliconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig lists the LEDGER_* environment variables.
type EnvConfig struct {
	WorkerID         string        `env:"WORKER_ID"`
	CoordinatorAddr  string        `env:"COORDINATOR"`
	StateDir         string        `env:"STATE_DIR"`
	Storage          string        `env:"STORAGE"`
	DatabaseDSN      string        `env:"DATABASE_DSN"`
	RetryInterval    time.Duration `env:"RETRY_INTERVAL"`
	RetryMax         time.Duration `env:"RETRY_MAX"`
	DialTimeout      time.Duration `env:"DIAL_TIMEOUT"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT"`
	CommitTimeout    time.Duration `env:"COMMIT_TIMEOUT"`
	ExitOnDisconnect *bool         `env:"EXIT_ON_DISCONNECT"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic       string        `env:"KAFKA_TOPIC"`
	LogLevel         string        `env:"LOG_LEVEL"`
	GuardSnapshot    *bool         `env:"GUARD_SNAPSHOT"`
}

// EnvPrefix is prepended to every variable in EnvConfig.
const EnvPrefix = "LEDGER_"

// LoadEnvConfig parses the LEDGER_* variables of the process environment.
func LoadEnvConfig() (EnvConfig, error) {
	return parseEnv(env.Options{Prefix: EnvPrefix})
}

func parseEnv(opts env.Options) (EnvConfig, error) {
	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, opts); err != nil {
		return ec, fmt.Errorf("parse env: %w", err)
	}
	return ec, nil
}

// ApplyEnvConfig applies configuration from environment variables (LEDGER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	ec, err := LoadEnvConfig()
	if err != nil {
		return err
	}
	applyEnv(cfg, ec, changed)
	return nil
}

func applyEnv(cfg *Config, ec EnvConfig, changed map[string]bool) {
	s := newConfigSetter(changed)

	s.setString("worker-id", ec.WorkerID, &cfg.WorkerID)
	s.setString("coordinator", ec.CoordinatorAddr, &cfg.CoordinatorAddr)
	s.setString("state-dir", ec.StateDir, &cfg.StateDir)
	s.setString("storage", ec.Storage, &cfg.Storage)
	s.setString("database-dsn", ec.DatabaseDSN, &cfg.DatabaseDSN)
	s.setString("kafka-topic", ec.KafkaTopic, &cfg.KafkaTopic)
	s.setString("log-level", ec.LogLevel, &cfg.LogLevel)
	s.setStrings("kafka-brokers", ec.KafkaBrokers, &cfg.KafkaBrokers)

	s.setDurationValue("retry-interval", ec.RetryInterval, &cfg.RetryInterval)
	s.setDurationValue("retry-max", ec.RetryMax, &cfg.RetryMax)
	s.setDurationValue("dial-timeout", ec.DialTimeout, &cfg.DialTimeout)
	s.setDurationValue("write-timeout", ec.WriteTimeout, &cfg.WriteTimeout)
	s.setDurationValue("commit-timeout", ec.CommitTimeout, &cfg.CommitTimeout)

	s.setBool("exit-on-disconnect", ec.ExitOnDisconnect, &cfg.ExitOnDisconnect)
	s.setBool("guard-snapshot", ec.GuardSnapshot, &cfg.GuardSnapshot)
}
