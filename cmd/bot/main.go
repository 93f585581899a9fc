package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/runner"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/trace"
	"spot-trading-bot/internal/tradelog"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "bot",
		Short:         "Rule-based spot trading bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(validateCmd(&configPath))
	root.AddCommand(summarizeCmd(&configPath))
	return root
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Warm up and trade until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath)
		},
	}
}

func validateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: mode=%s universe=%v\n", cfg.Mode, cfg.Universe)
			return nil
		},
	}
}

func summarizeCmd(configPath *string) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Write the per-asset CSV summary of one day's fills",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			t := time.Now().UTC()
			if day != "" {
				if t, err = time.Parse(time.DateOnly, day); err != nil {
					return fmt.Errorf("invalid --day %q: %w", day, err)
				}
			}
			p, err := tradelog.Summarize(cfg.Journal.Dir, t)
			if err != nil {
				return err
			}
			if p == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no fills for", t.Format(time.DateOnly))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "summary written:", p)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "UTC day as YYYY-MM-DD (default today)")
	return cmd
}

func run(configPath string) error {
	if err := initializeSystem(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	journal, err := initializeJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	brk, err := initializeBroker(ctx, cfg)
	if err != nil {
		return err
	}
	eng := initializeEngine(cfg, brk, journal)
	r := runner.New(runner.ConfigFrom(cfg), eng)

	srv := initializeStatus(ctx, cfg, eng, r)
	logBanner(ctx, cfg)

	err = r.Run(ctx)
	logger.Info(context.Background(), "Shutting down", "open_positions", len(eng.Positions()))

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	_ = journal.Close()
	writeSummary(context.Background(), cfg)
	return err
}
