package cliconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/ledgerworker/pkg/worker"
)

// Config holds CLI configuration for ledger-worker.
type Config struct {
	WorkerID        string
	CoordinatorAddr string

	StateDir    string
	Storage     string
	DatabaseDSN string

	RetryInterval time.Duration
	RetryMax      time.Duration
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	CommitTimeout time.Duration

	ExitOnDisconnect bool

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel      string
	GuardSnapshot bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		CoordinatorAddr: worker.DefaultCoordinatorAddr,
		StateDir:        ".",
		Storage:         worker.StorageFile,
		RetryInterval:   2 * time.Second,
		RetryMax:        2 * time.Second,
		DialTimeout:     worker.DefaultDialTimeout,
		WriteTimeout:    worker.DefaultWriteTimeout,
		CommitTimeout:   5 * time.Second,
		KafkaTopic:      "ledger.events",
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.WorkerID = strings.TrimSpace(c.WorkerID)
	if c.WorkerID == "" {
		return fmt.Errorf("worker-id is required")
	}
	if c.CoordinatorAddr == "" {
		c.CoordinatorAddr = worker.DefaultCoordinatorAddr
	}
	if c.StateDir == "" {
		c.StateDir = "."
	}
	c.Storage = strings.ToLower(c.Storage)
	if c.Storage == "" {
		c.Storage = worker.StorageFile
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive")
	}
	if c.RetryMax < c.RetryInterval {
		c.RetryMax = c.RetryInterval
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return c.WorkerConfig().Validate()
}

// WorkerConfig converts the CLI configuration into a worker configuration.
func (c Config) WorkerConfig() worker.Config {
	return worker.Config{
		WorkerID:         c.WorkerID,
		CoordinatorAddr:  c.CoordinatorAddr,
		StateDir:         c.StateDir,
		Storage:          c.Storage,
		DatabaseDSN:      c.DatabaseDSN,
		RetryInterval:    c.RetryInterval,
		RetryMax:         c.RetryMax,
		DialTimeout:      c.DialTimeout,
		WriteTimeout:     c.WriteTimeout,
		CommitTimeout:    c.CommitTimeout,
		ExitOnDisconnect: c.ExitOnDisconnect,
		KafkaBrokers:     c.KafkaBrokers,
		KafkaTopic:       c.KafkaTopic,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list value if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setDurationValue sets a parsed duration if positive and flag not changed.
func (s *configSetter) setDurationValue(flag string, value time.Duration, dst *time.Duration) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}
