package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"investmon/internal/monitor"
)

// SweepWorker runs catalog sweeps enqueued through asynq, so manual stream
// starts and the periodic schedule share one execution path.
type SweepWorker struct {
	engine *monitor.Engine
	logger *slog.Logger
}

func NewSweepWorker(engine *monitor.Engine, logger *slog.Logger) *SweepWorker {
	return &SweepWorker{
		engine: engine,
		logger: logger.With("component", "sweep-worker"),
	}
}

func (w *SweepWorker) HandleSweep(ctx context.Context, task *asynq.Task) error {
	var payload monitor.SweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error("Failed to unmarshal sweep payload", "error", err)
		return fmt.Errorf("json unmarshal error: %w", err)
	}

	w.logger.Info("Processing sweep task", "stream_id", payload.StreamID)

	if err := w.engine.Sweep(ctx, payload.StreamID); err != nil {
		if errors.Is(err, monitor.ErrSweepInProgress) {
			// Another sweep won the race; nothing to retry.
			w.logger.Warn("Sweep skipped, one is already running", "stream_id", payload.StreamID)
			return nil
		}
		w.logger.Error("Sweep failed", "stream_id", payload.StreamID, "error", err)
		return err
	}
	return nil
}
