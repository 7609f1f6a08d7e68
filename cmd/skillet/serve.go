package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host     string
	Port     int
	Watch    bool
	Debounce time.Duration
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:     "localhost",
		Port:     8080,
		Debounce: 300 * time.Millisecond,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the skill API server",
	Long: `Start an HTTP server exposing the skill registry. Clients can list and
search skills, fetch their input and output schemas, execute them and
inspect the execution history.

With --watch the server reloads skills whenever a definition file changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServeCommand(cmd.Context(), getServeConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the API server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the API server to")
	serveCmd.Flags().Bool("watch", defaults.Watch, "Reload skills when definition files change")
	serveCmd.Flags().Duration("debounce", defaults.Debounce, "How long to wait for file changes to settle before reloading")
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()

	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounce, err := cmd.Flags().GetDuration("debounce"); err == nil {
		config.Debounce = debounce
	}

	return config
}

func runServeCommand(ctx context.Context, config *ServeConfig) error {
	serverConfig := &server.Config{Host: config.Host, Port: config.Port}
	if err := serverConfig.Validate(); err != nil {
		return errors.Wrap(err, "invalid server configuration")
	}
	if config.Port < 1024 {
		logger.G(ctx).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(context.WithoutCancel(ctx))

	// a nil *history.Store must not become a non-nil History
	var hist server.History
	if e.history != nil {
		hist = e.history
	}

	srv, err := server.New(serverConfig, e.registry, hist)
	if err != nil {
		return errors.Wrap(err, "failed to create API server")
	}

	if config.Watch {
		go func() {
			if err := e.registry.Watch(ctx, config.Debounce); err != nil {
				logger.G(ctx).WithError(err).Warn("skill watcher stopped")
			}
		}()
		presenter.Info("Watching skill directories for changes")
	}

	presenter.Info("Press Ctrl+C to stop the server")
	if err := srv.Start(ctx); err != nil {
		return errors.Wrap(err, "API server failed")
	}

	presenter.Info("API server stopped")
	return nil
}
