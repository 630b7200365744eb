package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/omochice/assistant-session/internal/client"
	"github.com/omochice/assistant-session/internal/config"
	"github.com/omochice/assistant-session/internal/identity"
	"github.com/omochice/assistant-session/internal/logging"
	"github.com/omochice/assistant-session/internal/transport"
	"github.com/omochice/assistant-session/internal/transport/gorilla"
	"github.com/omochice/assistant-session/internal/transport/ws"
	"github.com/omochice/assistant-session/internal/tui"
)

var (
	configPath    string
	baseURL       string
	token         string
	transportName string
	logFile       string
	logLevel      string
	style         string
)

var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Terminal client for the chat assistant backend",
	Long: `Connects to the chat assistant backend over WebSocket and keeps the
connection alive, reconnecting every watchdog interval while it is down.

Settings come from the optional YAML file, a .env file, CHATBOT_* environment
variables and finally the flags below.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
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
	rootCmd.Flags().StringVar(&baseURL, "url", "", "Backend base URL (e.g., https://chat.example.com)")
	rootCmd.Flags().StringVar(&token, "token", "", "Bearer token sent in the BearerToken cookie")
	rootCmd.Flags().StringVar(&transportName, "transport", "", "WebSocket implementation: gobwas or gorilla")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&style, "style", tui.AutoStyle, "Markdown style (auto, dark, light, notty)")
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.BaseURL = baseURL
	}
	if flags.Changed("token") {
		cfg.BearerToken = token
	}
	if flags.Changed("transport") {
		cfg.Transport = transportName
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

func run(cfg *config.Config) error {
	logger, closer, err := logging.OpenFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	var dialer transport.Dialer = ws.Dialer{Timeout: cfg.DialTimeout}
	if cfg.Transport == config.TransportGorilla {
		dialer = gorilla.Dialer{Timeout: cfg.DialTimeout}
	}

	model := tui.NewModel(tui.Options{
		UserName:       identity.DisplayName(cfg.BearerToken, cfg.UserNameClaim, "You"),
		Style:          style,
		TranscriptPath: cfg.TranscriptPath,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	c, err := client.New(client.Options{
		BaseURL:          cfg.BaseURL,
		BearerToken:      cfg.BearerToken,
		WatchdogInterval: cfg.WatchdogInterval,
		DialTimeout:      cfg.DialTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		SendQueue:        cfg.SendQueue,
		HistoryEnabled:   cfg.HistoryEnabled,
		Greeting:         cfg.Greeting,
	}, dialer, tui.NewProgramView(program), logger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	model.Bind(c)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientDone := make(chan error, 1)
	go func() { clientDone <- c.Run(ctx) }()
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	logger.Info().Str("url", cfg.BaseURL).Str("transport", cfg.Transport).Msg("starting session")

	_, err = program.Run()
	stop()
	if clientErr := <-clientDone; clientErr != nil && err == nil {
		err = clientErr
	}
	if err != nil {
		return fmt.Errorf("session ended with error: %w", err)
	}
	return nil
}
