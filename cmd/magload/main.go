// Command magload loads a mobile-payment CSV export into the MAG table.
//
//	magload [flags] [file]
//	magload validate [flags] [file]
//	magload probe [flags] [file]
//
// Settings come from built-in defaults, an optional YAML file (--config),
// environment variables and flags, later layers winning. The process exits 0
// on success and 1 on any failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"magload/internal/config"
	"magload/internal/etl"
	"magload/internal/metrics"
	"magload/internal/metrics/datadog"
	"magload/internal/metrics/prompush"
	"magload/internal/probe"

	// Every backend is linked in; storage.kind picks one at runtime.
	_ "magload/internal/storage/all"
)

// Function variables used to introduce test seams.
var (
	runFn       = etl.Run
	newLoggerFn = newLogger
)

// errInvalidConfig is returned after the validation issues were printed.
var errInvalidConfig = errors.New("configuration is invalid")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command tree and returns the process exit code.
func execute(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	root := newRootCmd(getenv)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errInvalidConfig) {
			fmt.Fprintln(stderr, "magload:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:           "magload [file]",
		Short:         "Load a mobile-payment CSV export into the MAG table",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	loader := config.Bind(root.PersistentFlags(), getenv)

	resolve := func(cmd *cobra.Command, args []string) (*config.Config, error) {
		cfg, err := loader.Resolve()
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			cfg.Source.File = args[0]
		}
		if report(cmd.ErrOrStderr(), config.Validate(*cfg)) {
			return nil, errInvalidConfig
		}
		return cfg, nil
	}

	root.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := resolve(cmd, args)
		if err != nil {
			return err
		}
		log, err := newLoggerFn(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		log.Debug("configuration", zap.Any("config", cfg.Redacted()))

		flush := setupMetrics(*cfg, log)
		defer flush()

		sum, err := runFn(cmd.Context(), *cfg, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted %d of %d rows into %s\n",
			sum.Inserted, sum.Stats.Input, cfg.Storage.Table)
		return nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check the configuration without touching the file or the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: file=%s storage=%s table=%s\n",
				cfg.Source.File, cfg.Storage.Kind, cfg.Storage.Table)
			return nil
		},
	})

	var sampleBytes int
	probeCmd := &cobra.Command{
		Use:   "probe [file]",
		Short: "Sample the file and report what a load would do, without a database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve(cmd, args)
			if err != nil {
				return err
			}
			comma, err := cfg.Parser.Comma()
			if err != nil {
				return err
			}
			rep, err := probe.Probe(cmd.Context(), etl.NewSource(cfg.Source.File), probe.Options{
				MaxBytes: sampleBytes,
				Comma:    comma,
				Encoding: cfg.Parser.Encoding,
			})
			if err != nil {
				return err
			}
			if err := rep.Render(cmd.OutOrStdout()); err != nil {
				return err
			}
			if !rep.Loadable() {
				return errors.New("file cannot be loaded")
			}
			return nil
		},
	}
	probeCmd.Flags().IntVar(&sampleBytes, "bytes", probe.DefaultMaxBytes, "Number of bytes to sample from the start of the file")
	root.AddCommand(probeCmd)
	return root
}

// report prints every issue and says whether any of them is an error.
func report(w io.Writer, issues []config.Issue) bool {
	for _, iss := range issues {
		fmt.Fprintln(w, iss.Error())
	}
	return config.HasErrors(issues)
}

// newLogger builds a JSON (production) or console (development) logger at
// the given level, writing to stderr.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	var zc zap.Config
	switch format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it. Backend failures only disable metrics.
func setupMetrics(cfg config.Config, log *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		log.Debug("metrics disabled", zap.String("backend", cfg.Metrics.Backend))
		return func() {}
	}
	if err != nil {
		log.Warn("metrics backend unavailable; using nop", zap.String("backend", cfg.Metrics.Backend), zap.Error(err))
		return func() {}
	}

	log.Info("metrics enabled", zap.String("backend", cfg.Metrics.Backend))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}
}
