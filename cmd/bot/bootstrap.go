package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"spot-trading-bot/internal/broker/brokerobs"
	"spot-trading-bot/internal/broker/roostoo"
	"spot-trading-bot/internal/engine"
	"spot-trading-bot/internal/engine/engineobs"
	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/runner"
	"spot-trading-bot/internal/status"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/trace"
	"spot-trading-bot/internal/tradelog"
)

// initializeSystem loads .env and initializes the logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func initializeJournal(ctx context.Context, cfg *store.Config) (*tradelog.Journal, error) {
	j, err := tradelog.Open(cfg.Journal.Dir)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open trade journal", err, "dir", cfg.Journal.Dir)
		return nil, err
	}
	return j, nil
}

// initializeBroker builds the Roostoo client with observability
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Broker, error) {
	brk, err := roostoo.New(cfg, roostoo.CredentialsFromEnv())
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize broker", err, "mode", cfg.Mode)
		return nil, err
	}
	if brk.Mode() == roostoo.ModeDryRun {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated at the last ticker price")
	}
	return brokerobs.Wrap(brk), nil
}

// initializeEngine builds the trading engine with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker, journal *tradelog.Journal) interfaces.Engine {
	return engineobs.Wrap(engine.New(cfg, brk, journal))
}

// initializeStatus starts the status server when enabled; nil otherwise.
func initializeStatus(ctx context.Context, cfg *store.Config, eng interfaces.Engine, r *runner.Runner) *status.Server {
	if !cfg.Status.Enabled {
		return nil
	}
	srv := status.NewServer(cfg.Status.Addr, status.Source{
		Positions: eng.Positions,
		State:     func() string { return r.State().String() },
	})
	srv.Start(ctx)
	return srv
}

func logBanner(ctx context.Context, cfg *store.Config) {
	logger.Info(ctx, "Spot trading bot starting",
		"version", version,
		"mode", cfg.Mode,
		"exchange", cfg.Exchange.BaseURL,
		"universe", strings.Join(cfg.Universe, ","),
		"tracing", trace.Enabled(),
	)
	rsi := "same-tick indicator"
	if cfg.Strategy.LegacyRSIGate {
		rsi = "muted (legacy gate)"
	}
	logger.Info(ctx, "Strategies",
		"ma_cross", fmt.Sprintf("SMA%d/SMA%d", cfg.Indicators.ShortWindow, cfg.Indicators.LongWindow),
		"breakout", "20-sample extreme",
		"rsi_extreme", fmt.Sprintf("RSI%d <30 / >70, %s", cfg.Indicators.RSIPeriod, rsi),
	)
	logger.Info(ctx, "Risk limits",
		"budget", cfg.Sizing.Budget,
		"max_exposure", cfg.Risk.MaxExposure,
		"stop_loss_pct", cfg.Risk.StopLossPct,
		"take_profit_pct", cfg.Risk.TakeProfitPct,
		"poll_interval", cfg.Loop.PollInterval,
		"warmup_ticks", cfg.Loop.WarmupTicks,
	)
}

// writeSummary writes today's CSV summary, if there were any fills.
func writeSummary(ctx context.Context, cfg *store.Config) {
	op := logger.StartOperation(ctx, "bot.write_summary", "dir", cfg.Journal.Dir)
	p, err := tradelog.Summarize(cfg.Journal.Dir, time.Now())
	if err != nil {
		op.EndWithError(err)
		return
	}
	op.End("path", p)
	if p != "" {
		logger.Info(ctx, "Session summary written", "path", p)
	}
}
