package engineobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/trace"
	"spot-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Ingest(ctx context.Context) (types.IngestResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Ingest")
	defer span.End()

	res, err := oe.engine.Ingest(ctx)
	if err != nil {
		span.RecordError(err)
		logger.WarnSkip(ctx, 1, "Warm-up ingest failed", "error", err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.Int("samples", res.Samples),
		attribute.Bool("updated", res.Updated),
	)
	logger.DebugSkip(ctx, 1, "Warm-up ingest completed",
		"samples", res.Samples,
		"updated", res.Updated,
	)
	return res, nil
}

func (oe *observableEngine) Step(ctx context.Context) (*types.StepResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Starting trading cycle")

	result, err := oe.engine.Step(ctx)
	if err != nil {
		span.RecordError(err)
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("tick", result.Tick),
		attribute.String("status", string(result.Status)),
		attribute.Int("fills", len(result.Fills)),
	)
	logger.InfoSkip(ctx, 1, "Trading cycle completed",
		"tick", result.Tick,
		"status", result.Status,
		"buys", result.Buys,
		"sells", result.Sells,
		"fills", len(result.Fills),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func (oe *observableEngine) Positions() []types.Position {
	return oe.engine.Positions()
}
