// cmd/forgectl/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ammerola/data-forge/internal/bootstrap"
	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/pkg/config"
	"github.com/ammerola/data-forge/internal/pkg/logger"
)

// globalOptions are shared by every subcommand
type globalOptions struct {
	variant  string
	logLevel string
	logFile  string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "forgectl",
		Short: "Manage data forge catalogs from the command line",
		Long: `forgectl seeds, lists and exports the catalogs served by the data forge API
and manages the PostgreSQL schema.

It reads the same configuration as the API (environment, .env and forge.yaml),
so it operates on the store the API is configured to use.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.variant, "variant", "V", domain.Postcards.Name, "Catalog variant")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Also append JSON logs to this file")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(newSeedCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is an opened backend plus the logger and config behind it
type session struct {
	cfg      *config.Config
	backend  *bootstrap.Backend
	logger   *slog.Logger
	closeLog func()
}

// newLogger writes pretty logs to stderr and, with --log-file, mirrors them
// as JSON into that file.
func newLogger(opts *globalOptions, stderr io.Writer) (*slog.Logger, func(), error) {
	cfg := &logger.LogConfig{
		Level:  opts.logLevel,
		Format: "pretty",
		Writer: stderr,
	}
	closeFn := func() {}

	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cfg.Mirror = f
		closeFn = func() { _ = f.Close() }
	}

	return logger.NewLogger(cfg), closeFn, nil
}

func openSession(ctx context.Context, opts *globalOptions, stderr io.Writer) (*session, error) {
	log, closeLog, err := newLogger(opts, stderr)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(log)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	backend, err := bootstrap.Open(ctx, cfg, false, log)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	return &session{cfg: cfg, backend: backend, logger: log, closeLog: closeLog}, nil
}

func (s *session) Close() {
	s.backend.Close()
	s.closeLog()
}

func (s *session) variant(name string) (*domain.Variant, error) {
	v, err := domain.VariantByName(name)
	if err != nil {
		return nil, err
	}
	if _, ok := s.backend.Persistence[v.Name]; !ok {
		return nil, fmt.Errorf("variant %q is not enabled in STORE_VARIANTS", v.Name)
	}
	return v, nil
}

func withTimeout(cmd *cobra.Command, opts *globalOptions) (context.Context, context.CancelFunc) {
	if opts.timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), opts.timeout)
}
