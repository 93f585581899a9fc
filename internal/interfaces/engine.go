package interfaces

import (
	"context"

	"spot-trading-bot/internal/types"
)

type Engine interface {
	// Ingest fetches one snapshot and updates history and indicators only.
	Ingest(ctx context.Context) (types.IngestResult, error)
	// Step runs one full trading iteration.
	Step(ctx context.Context) (*types.StepResult, error)
	Positions() []types.Position
}
