// Package runner drives an engine through warm-up and the trading loop.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

type State int32

const (
	StateIdle State = iota
	StateWarmingUp
	StateTrading
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWarmingUp:
		return "WARMING_UP"
	case StateTrading:
		return "TRADING"
	case StateStopped:
		return "STOPPED"
	}
	return "IDLE"
}

// Config holds loop timing.
type Config struct {
	WarmupTicks    int
	WarmupInterval time.Duration
	PollInterval   time.Duration
	ErrorBackoff   time.Duration
}

// ConfigFrom extracts loop timing from the bot configuration.
func ConfigFrom(cfg *store.Config) Config {
	return Config{
		WarmupTicks:    cfg.Loop.WarmupTicks,
		WarmupInterval: cfg.Loop.WarmupInterval,
		PollInterval:   cfg.Loop.PollInterval,
		ErrorBackoff:   cfg.Loop.ErrorBackoff,
	}
}

// Runner calls the engine from a single goroutine. Cancellation is observed
// only between iterations; an iteration in flight always completes.
type Runner struct {
	cfg    Config
	engine interfaces.Engine
	state  atomic.Int32

	// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
	sleep func(ctx context.Context, d time.Duration) bool
	// OnStep, if set, receives every completed trading iteration.
	OnStep func(*types.StepResult)
}

func New(cfg Config, eng interfaces.Engine) *Runner {
	return &Runner{cfg: cfg, engine: eng, sleep: sleepCtx}
}

func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(ctx context.Context, s State) {
	prev := State(r.state.Swap(int32(s)))
	if prev != s {
		logger.Info(ctx, "Runner state changed", "from", prev.String(), "to", s.String())
	}
}

// Run blocks until ctx is cancelled. Open positions are left as they are.
func (r *Runner) Run(ctx context.Context) error {
	defer r.setState(ctx, StateStopped)

	if !r.warmUp(ctx) {
		return nil
	}

	r.setState(ctx, StateTrading)
	for ctx.Err() == nil {
		wait := r.cfg.PollInterval
		if err := r.step(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Trading iteration failed, backing off", err, "backoff", r.cfg.ErrorBackoff)
			wait = r.cfg.ErrorBackoff
		}
		if !r.sleep(ctx, wait) {
			break
		}
	}
	return nil
}

// warmUp ingests until WarmupTicks snapshots were fetched successfully. It
// returns false when cancelled first.
func (r *Runner) warmUp(ctx context.Context) bool {
	r.setState(ctx, StateWarmingUp)
	logger.Info(ctx, "Warming up indicators", "ticks", r.cfg.WarmupTicks, "interval", r.cfg.WarmupInterval)

	done := 0
	for done < r.cfg.WarmupTicks {
		if ctx.Err() != nil {
			return false
		}
		res, err := r.ingest(ctx)
		switch {
		case err != nil:
			logger.Warn(ctx, "Warm-up tick failed", "error", err.Error(), "completed", done)
		case res.Fresh:
			done++
			logger.Debug(ctx, "Warm-up progress", "completed", done, "target", r.cfg.WarmupTicks)
		}
		if done < r.cfg.WarmupTicks && !r.sleep(ctx, r.cfg.WarmupInterval) {
			return false
		}
	}
	logger.Info(ctx, "Warm-up complete", "ticks", done)
	return ctx.Err() == nil
}

func (r *Runner) ingest(ctx context.Context) (res types.IngestResult, err error) {
	defer recoverInto(&err)
	return r.engine.Ingest(context.WithoutCancel(ctx))
}

func (r *Runner) step(ctx context.Context) (err error) {
	defer recoverInto(&err)
	res, err := r.engine.Step(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	if r.OnStep != nil && res != nil {
		r.OnStep(res)
	}
	return nil
}

func recoverInto(err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
