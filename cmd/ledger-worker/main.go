package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/cliconfig"
	"github.com/bft-labs/ledgerworker/pkg/worker"
	"github.com/bft-labs/ledgerworker/plugins/snapshotguard"
)

const helpDescription = `
Run one worker node of the sharded ledger.

The worker connects to the coordinator, announces its id and answers every
command on the connection, one line per command, in order. Balances, loans and
transaction logs are committed durably before each response is sent.

Storage:
  file      worker_<id>_data.json in the state directory (default)
  sqlite    worker_<id>.db in the state directory
  postgres  one row per worker in the database named by --database-dsn

Configuration is read from the config file, then LEDGER_* environment
variables, then flags; later sources win.
`

var exampleUsage = strings.TrimSpace(`
  ledger-worker --worker-id w1 --coordinator localhost:9000
  ledger-worker --worker-id w2 --storage sqlite --state-dir /var/lib/ledger
  LEDGER_WORKER_ID=w3 ledger-worker --config $HOME/.ledger-worker/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log, _ := cliconfig.Logger("info")

	root := &cobra.Command{
		Use:           "ledger-worker",
		Short:         "Run a worker node of the sharded ledger",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			} else if cfgPath != "" {
				return fmt.Errorf("config file %s not found", cfgPath)
			}

			// Environment overrides the file; flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			var err error
			log, err = cliconfig.Logger(cfg.LogLevel)
			if err != nil {
				return err
			}

			logCfg := cfg
			if logCfg.DatabaseDSN != "" {
				logCfg.DatabaseDSN = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			opts := []worker.Option{
				worker.WithLogger(logAdapter.NewZerologAdapterWithLogger(log)),
			}
			if cfg.GuardSnapshot {
				opts = append(opts, snapshotguard.WithDefaultSnapshotGuard())
			}

			w, err := worker.New(cfg.WorkerConfig(), opts...)
			if err != nil {
				return fmt.Errorf("create worker: %w", err)
			}

			// Setup signal handling for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}

			// The worker stops on its own when the coordinator disconnects
			// with --exit-on-disconnect, or when it crashes.
			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						status := w.Status()
						if status == worker.StateStopped || status == worker.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("received signal, stopping...")
			case <-doneCh:
				if w.Status() == worker.StateCrashed {
					return fmt.Errorf("worker crashed: %w", w.Err())
				}
				log.Info().Msg("worker stopped")
				return nil
			}

			if err := w.Stop(); err != nil {
				return fmt.Errorf("stop worker: %w", err)
			}
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.ledger-worker/config.toml)")
	root.Flags().StringVar(&cfg.WorkerID, "worker-id", cfg.WorkerID, "worker identity announced to the coordinator (required)")
	root.Flags().StringVar(&cfg.CoordinatorAddr, "coordinator", cfg.CoordinatorAddr, "coordinator host:port")

	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the ledger snapshot")
	root.Flags().StringVar(&cfg.Storage, "storage", cfg.Storage, "snapshot backend: file, sqlite or postgres")
	root.Flags().StringVar(&cfg.DatabaseDSN, "database-dsn", cfg.DatabaseDSN, "postgres connection string")

	root.Flags().DurationVar(&cfg.RetryInterval, "retry-interval", cfg.RetryInterval, "wait before reconnecting to the coordinator")
	root.Flags().DurationVar(&cfg.RetryMax, "retry-max", cfg.RetryMax, "maximum reconnect wait; above retry-interval enables backoff")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout for one connection attempt")
	root.Flags().DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "timeout for writing one response")
	root.Flags().DurationVar(&cfg.CommitTimeout, "commit-timeout", cfg.CommitTimeout, "timeout for one snapshot commit")
	root.Flags().BoolVar(&cfg.ExitOnDisconnect, "exit-on-disconnect", cfg.ExitOnDisconnect, "exit when the coordinator closes the connection instead of reconnecting")

	root.Flags().StringSliceVar(&cfg.KafkaBrokers, "kafka-brokers", cfg.KafkaBrokers, "Kafka brokers for ledger events (optional)")
	root.Flags().StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic for ledger events")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	root.Flags().BoolVar(&cfg.GuardSnapshot, "guard-snapshot", cfg.GuardSnapshot, "warn when another process modifies the snapshot")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("ledger-worker")
		os.Exit(1)
	}
}
