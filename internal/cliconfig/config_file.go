package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	WorkerID         string   `toml:"worker_id"`
	CoordinatorAddr  string   `toml:"coordinator"`
	StateDir         string   `toml:"state_dir"`
	Storage          string   `toml:"storage"`
	DatabaseDSN      string   `toml:"database_dsn"`
	RetryInterval    string   `toml:"retry_interval"`
	RetryMax         string   `toml:"retry_max"`
	DialTimeout      string   `toml:"dial_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	CommitTimeout    string   `toml:"commit_timeout"`
	ExitOnDisconnect *bool    `toml:"exit_on_disconnect"`
	KafkaBrokers     []string `toml:"kafka_brokers"`
	KafkaTopic       string   `toml:"kafka_topic"`
	LogLevel         string   `toml:"log_level"`
	GuardSnapshot    *bool    `toml:"guard_snapshot"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.ledger-worker/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ledger-worker", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("worker-id", fc.WorkerID, &cfg.WorkerID)
	s.setString("coordinator", fc.CoordinatorAddr, &cfg.CoordinatorAddr)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("storage", fc.Storage, &cfg.Storage)
	s.setString("database-dsn", fc.DatabaseDSN, &cfg.DatabaseDSN)
	s.setString("kafka-topic", fc.KafkaTopic, &cfg.KafkaTopic)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setStrings("kafka-brokers", fc.KafkaBrokers, &cfg.KafkaBrokers)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"retry-interval", fc.RetryInterval, &cfg.RetryInterval},
		{"retry-max", fc.RetryMax, &cfg.RetryMax},
		{"dial-timeout", fc.DialTimeout, &cfg.DialTimeout},
		{"write-timeout", fc.WriteTimeout, &cfg.WriteTimeout},
		{"commit-timeout", fc.CommitTimeout, &cfg.CommitTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setBool("exit-on-disconnect", fc.ExitOnDisconnect, &cfg.ExitOnDisconnect)
	s.setBool("guard-snapshot", fc.GuardSnapshot, &cfg.GuardSnapshot)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
