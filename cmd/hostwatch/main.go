package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/hostwatch/internal/config"
	"github.com/hazz-dev/hostwatch/internal/notify"
	"github.com/hazz-dev/hostwatch/internal/poller"
	"github.com/hazz-dev/hostwatch/internal/probe"
	"github.com/hazz-dev/hostwatch/internal/server"
	"github.com/hazz-dev/hostwatch/internal/status"
	"github.com/hazz-dev/hostwatch/internal/storage"
	"github.com/hazz-dev/hostwatch/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hostwatch",
		Short:        "Chat notifications when monitored hosts go up or down",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file path")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hostwatch %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start polling hosts and sending notifications",
		RunE:  runServe,
	}
}

// newSender builds the Sender for the configured channel type.
func newSender(ch config.ChannelConfig, logger *slog.Logger) (notify.Sender, error) {
	switch ch.Type {
	case "telegram":
		return notify.NewTelegram(ch.BotToken), nil
	case "webhook":
		return notify.NewWebhook(ch.URL), nil
	case "log":
		return &notify.LogSender{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", ch.Type)
	}
}

type describer interface {
	SetDescription(ctx context.Context, description string) error
}

// announce publishes which machine the bot runs on. Failure is not fatal.
func announce(ctx context.Context, sender notify.Sender, logger *slog.Logger) {
	d, ok := sender.(describer)
	if !ok {
		return
	}
	hostname, err := os.Hostname()
	if err != nil {
		logger.Warn("reading hostname", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.SetDescription(ctx, "Status monitoring bot running on "+hostname); err != nil {
		logger.Warn("setting bot description", "error", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Info("config loaded", "hosts", len(cfg.Hosts), "interval", cfg.Interval.Duration)

	// 2. Open the transition journal
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// 3. Build the notification channel
	sender, err := newSender(cfg.Channel, logger)
	if err != nil {
		return err
	}
	notifier := notify.New(sender, cfg.Channel.ChatID, cfg.Channel.Location(), logger)

	// 4. Build prober, status store and poller
	prober, err := probe.New(cfg.Probe)
	if err != nil {
		return fmt.Errorf("building prober: %w", err)
	}
	store := status.NewStore(len(cfg.Hosts))
	p := poller.New(cfg.Hosts, prober, status.NewDetector(store, nil), notifier, poller.Options{
		Interval: cfg.Interval.Duration,
		Timeout:  cfg.Probe.Timeout.Duration,
		Workers:  cfg.Probe.Workers,
	}, logger)
	p.SetJournal(db)

	// 5. Build API server
	apiServer := server.New(store, db, cfg.Hosts, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: apiServer.Router(),
	}

	// 6. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	announce(ctx, sender, logger)

	// 7. Start polling
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting poller: %w", err)
	}
	logger.Info("poller started", "hosts", len(cfg.Hosts), "channel", cfg.Channel.Type)

	// 8. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 9. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		p.Stop()
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 10. Graceful shutdown
	p.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe every configured host once and print the result",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	prober, err := probe.New(cfg.Probe)
	if err != nil {
		return fmt.Errorf("building prober: %w", err)
	}
	return executeCheck(cmd, cfg, prober)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last recorded transition of every host",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db)
}
