package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/grhooks/internal/config"
	"github.com/mattjoyce/grhooks/internal/dispatch"
	"github.com/mattjoyce/grhooks/internal/lock"
	"github.com/mattjoyce/grhooks/internal/log"
	"github.com/mattjoyce/grhooks/internal/routing"
	"github.com/mattjoyce/grhooks/internal/webhook"
)

const (
	manifestDirEnv = "GRHOOKS_MANIFEST_DIR"
	logLevelEnv    = "GRHOOKS_LOG"
)

var errNoManifest = errors.New("manifest path required: pass it as an argument or set " + manifestDirEnv)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type serveOptions struct {
	verbose int
	listen  string
	port    int
	pidFile string
}

func newRootCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "grhooks [manifest-dir]",
		Short: "Webhook gateway that runs commands for incoming deliveries",
		Long: "grhooks receives GitHub, GitLab and generic webhooks, authenticates them\n" +
			"and runs the command or script configured for the request path.\n\n" +
			"The manifest may be a single file or a directory of YAML, TOML or JSON\n" +
			"fragments. It is watched and reloaded on change.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().CountVarP(&opts.verbose, "verbose", "v", "Increase log verbosity (overridden by "+logLevelEnv+")")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Override the listen address")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Override the listen port")
	cmd.Flags().StringVar(&opts.pidFile, "pid-file", "", "Refuse to start if another instance holds this PID file")

	cmd.AddCommand(newRoutesCommand(), newCheckCommand(), newVersionCommand())
	return cmd
}

// manifestSource picks the manifest from the positional argument, falling
// back to the environment.
func manifestSource(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if env := strings.TrimSpace(os.Getenv(manifestDirEnv)); env != "" {
		return env, nil
	}
	return "", errNoManifest
}

// logLevel resolves the effective level: GRHOOKS_LOG, then -v, then config.
func logLevel(verbose int, configured string) string {
	if env := strings.TrimSpace(os.Getenv(logLevelEnv)); env != "" {
		return env
	}
	if verbose > 0 {
		return "debug"
	}
	if configured != "" {
		return configured
	}
	return "info"
}

func runServe(ctx context.Context, args []string, opts *serveOptions) error {
	source, err := manifestSource(args)
	if err != nil {
		return err
	}

	table, cfg, err := routing.Load(source)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Reloads are compared against the file values, not the flag overrides.
	loaded := *cfg
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.port != 0 {
		cfg.Port = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Setup(logLevel(opts.verbose, cfg.LogLevel), cfg.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("grhooks starting",
		"version", currentVersionInfo().Version,
		"source", cfg.Source,
		"fragments", len(cfg.Fragments),
		"routes", table.Len(),
		"fingerprint", config.ShortHash(table.Fingerprint()),
	)
	for _, warning := range cfg.Warnings {
		logger.Warn("Configuration warning", "warning", warning)
	}

	if opts.pidFile != "" {
		pidFile, err := lock.Acquire(opts.pidFile)
		if err != nil {
			return fmt.Errorf("failed to acquire pid file: %w", err)
		}
		defer func() { _ = pidFile.Release() }()
		logger.Info("acquired PID file", "path", pidFile.Path())
	}

	executor := dispatch.New(
		dispatch.WithLogger(log.WithComponent("dispatch")),
		dispatch.WithDefaultTimeout(cfg.CommandTimeout.Std()),
	)
	server := webhook.New(webhook.ConfigFrom(cfg), table, executor, log.WithComponent("webhook"))
	watcher := routing.NewWatcher(cfg.Source, table,
		routing.WithLogger(log.WithComponent("routing")),
		routing.OnReload(func(next *config.Config) {
			if serverSettingsChanged(&loaded, next) {
				logger.Warn("Server settings changed; restart to apply them")
			}
		}),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		// Without a watcher the gateway keeps serving the table it has.
		if err := watcher.Run(ctx); err != nil {
			logger.Error("Configuration watcher stopped", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("grhooks failed", "error", err)
		return err
	}
	logger.Info("grhooks stopped")
	return nil
}

// serverSettingsChanged reports whether a reload touched settings that only
// take effect on restart.
func serverSettingsChanged(loaded, next *config.Config) bool {
	return next.Listen != loaded.Listen ||
		next.Port != loaded.Port ||
		next.MaxBodySize != loaded.MaxBodySize ||
		next.MetricsPath != loaded.MetricsPath ||
		next.RateLimit != loaded.RateLimit
}
