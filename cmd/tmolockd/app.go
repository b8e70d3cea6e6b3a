package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	tmolockd "github.com/EdwinVallejo/SalesforceTMO"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix("TMOLOCKD_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "tmolockd")
	cmd := newRootCommand(baseLogger)
	ctx = withSignalCancel(ctx)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "tmolockd: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	var cfg tmolockd.Config

	cmd := &cobra.Command{
		Use:           "tmolockd",
		Short:         "tmolockd serves and manipulates advisory record locks over HTTP",
		SilenceErrors: true,
		Example: `
  # In-memory storage (tests/dev only)
  tmolockd --store mem://

  # Disk-backed storage rooted at /var/lib/tmolockd-data
  tmolockd --store disk:///var/lib/tmolockd-data

  # Bolt file database with a Prometheus scrape endpoint
  tmolockd --store bolt:///var/lib/tmolockd/locks.db --metrics-listen :9347

  # Redis backend
  tmolockd --store redis://127.0.0.1:6379/0
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := baseLogger
			ctx := cmd.Context()
			cmd.SilenceUsage = true

			bindConfig(&cfg)
			logLevel := strings.TrimSpace(viper.GetString("log-level"))
			if logLevel == "" {
				logLevel = "info"
			}
			if level, ok := pslog.ParseLevel(logLevel); ok {
				logger = logger.LogLevel(level)
			}
			cliLogger := logger.With("sys", "cli")

			logger.Info("starting tmolockd",
				"pid", os.Getpid(),
				"store", cfg.Store,
				"listen", cfg.Listen,
			)

			server, err := tmolockd.NewServer(cfg, tmolockd.WithLogger(logger))
			if err != nil {
				return err
			}

			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					cliLogger.Error("shutdown failed", "error", err)
				}
			}()

			err = server.Start()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("listen", tmolockd.DefaultListen, "listen address")
	flags.String("metrics-listen", tmolockd.DefaultMetricsListen, "metrics listen address (Prometheus scrape endpoint; empty disables)")
	flags.String("store", tmolockd.DefaultStore, "storage backend URL (mem://, disk:///path, bolt:///path/locks.db, redis://host:port/db)")
	flags.Duration("default-duration", tmolockd.DefaultLockDuration, "lock duration applied when a request omits one")
	flags.Duration("max-duration", tmolockd.DefaultMaxLockDuration, "maximum lock duration a request may ask for")
	flags.Duration("shutdown-timeout", tmolockd.DefaultShutdownTimeout, "graceful shutdown timeout")
	flags.String("log-level", "info", "log level (trace|debug|info|warn|error)")

	bindFlag := func(name string) {
		flag := flags.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("TMOLOCKD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, name := range []string{
		"listen", "metrics-listen", "store",
		"default-duration", "max-duration", "shutdown-timeout",
		"log-level",
	} {
		bindFlag(name)
	}

	cmd.AddCommand(newClientCommand(baseLogger))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func bindConfig(cfg *tmolockd.Config) {
	cfg.Listen = viper.GetString("listen")
	cfg.MetricsListen = viper.GetString("metrics-listen")
	cfg.Store = viper.GetString("store")
	cfg.DefaultDuration = viper.GetDuration("default-duration")
	cfg.MaxDuration = viper.GetDuration("max-duration")
	cfg.ShutdownTimeout = viper.GetDuration("shutdown-timeout")
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
