package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkalashnik/kiosk-survey/pkg/app"
	"github.com/dkalashnik/kiosk-survey/pkg/config"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

var (
	settingsPath string
	envPath      string
	tuiLogPath   string

	rootCmd = &cobra.Command{
		Use:           "kiosk",
		Short:         "Unattended satisfaction survey kiosk",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk engine behind the local HTTP API",
		RunE:  runServe,
	}
	tuiCmd = &cobra.Command{
		Use:   "tui",
		Short: "Run the kiosk in the terminal",
		RunE:  runTUI,
	}
	queueCmd = &cobra.Command{
		Use:   "queue",
		Short: "Inspect or flush the offline delivery queue (stop the kiosk first when it uses badger or sqlite)",
	}
	queueStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the queued records",
		RunE:  runQueueStatus,
	}
	queueDrainCmd = &cobra.Command{
		Use:   "drain",
		Short: "Try to deliver every queued record once",
		RunE:  runQueueDrain,
	}
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Probe the configured collector",
		RunE:  runHealth,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "kiosk.yaml", "Settings file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "Optional dotenv file")
	tuiCmd.Flags().StringVar(&tuiLogPath, "log-file", "kiosk-tui.log", "Log destination while the terminal UI is active")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueDrainCmd)
	rootCmd.AddCommand(healthCmd)
}

func loadSettings() (config.Settings, error) {
	s, err := config.LoadSettings(settingsPath, envPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := log.SetLevel(s.LogLevel); err != nil {
		return config.Settings{}, err
	}
	return s, nil
}

func openApp(ctx context.Context) (*app.App, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, s, app.Overrides{})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			log.Printf("Shutdown signal received...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
	return ctx, cancel
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx)
}

func runTUI(cmd *cobra.Command, args []string) error {
	f, err := os.OpenFile(tuiLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	log.Logger.SetOutput(f)

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.RunTUI(ctx)
}

func runQueueStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entries := a.Queue.Entries(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "%d record(s) queued for %s\n", len(entries), a.Config.Get().APIURL)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, rec := range entries {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func runQueueDrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Queue.Drain(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d delivered=%d remaining=%d\n", result.Attempted, result.Delivered, result.Remaining)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	url := a.Config.Get().APIURL
	if err := a.Collector.Health(ctx, url); err != nil {
		return fmt.Errorf("collector %s unreachable: %w", url, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "API OK ✓ %s\n", url)
	return nil
}
