package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omochice/assistant-session/internal/config"
	"github.com/omochice/assistant-session/internal/logging"
	"github.com/omochice/assistant-session/internal/server"
)

var (
	configPath   string
	addr         string
	requireToken string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Stub chat assistant backend",
	Long: `Serves the assistant session protocol on /ws. Replies restate the
prompt, so the backend is useful for local development and tests.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cmd.Flags().Changed("addr") {
			cfg.Address = addr
		}
		if cmd.Flags().Changed("require-token") {
			cfg.RequiredToken = requireToken
		}
		return run(cfg)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (e.g., :8080)")
	rootCmd.Flags().StringVar(&requireToken, "require-token", "", "Reject clients without this BearerToken cookie")
}

func run(cfg *config.ServerConfig) error {
	logger, err := logging.NewConsole(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	srv := server.New(*cfg, nil, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Address).Msg("starting assistant backend")
		errChan <- srv.Start()
	}()

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Stop()
	}

	logger.Info().Msg("server stopped")
	return nil
}
