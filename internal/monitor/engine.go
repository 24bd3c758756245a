package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"investmon/internal/eventbus"
	"investmon/internal/metrics"
)

var (
	ErrSweepInProgress  = errors.New("sweep already in progress")
	ErrEndpointNotFound = errors.New("endpoint not found")
)

type EngineConfig struct {
	StrikeThreshold int
	HistorySize     int
	Concurrency     int
}

// Engine runs health-check sweeps over the endpoint catalog and publishes
// start / result / end events to the bus. It owns the per-endpoint strike
// trackers and status history, so repeated sweeps and manual pings share
// one view of each endpoint's displayed status.
type Engine struct {
	repo    CatalogRepository
	checker *Checker
	bus     eventbus.EventBus
	logger  *slog.Logger
	cfg     EngineConfig

	mu            sync.Mutex
	trackers      map[string]*StatusTracker
	history       map[string][]Status
	currentStream string
}

func NewEngine(repo CatalogRepository, checker *Checker, bus eventbus.EventBus, logger *slog.Logger, cfg EngineConfig) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = 1
	}
	return &Engine{
		repo:     repo,
		checker:  checker,
		bus:      bus,
		logger:   logger.With("component", "monitor"),
		cfg:      cfg,
		trackers: make(map[string]*StatusTracker),
		history:  make(map[string][]Status),
	}
}

// Sweep checks every enabled endpoint and publishes events on the given
// stream. Only one sweep runs at a time; a concurrent call fails with
// ErrSweepInProgress.
func (e *Engine) Sweep(ctx context.Context, streamID string) error {
	e.mu.Lock()
	if e.currentStream != "" {
		e.mu.Unlock()
		return ErrSweepInProgress
	}
	e.currentStream = streamID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.currentStream = ""
		e.mu.Unlock()
	}()

	endpoints, err := e.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}

	started := time.Now()
	metrics.SweepsTotal.Inc()
	e.publish(ctx, streamID, eventbus.EventSweepStart, nil)

	sem := make(chan struct{}, e.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, ep := range endpoints {
		if !ep.Enabled {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ep Endpoint) {
			defer wg.Done()
			defer func() { <-sem }()

			result := e.runCheck(ctx, ep)
			e.publish(ctx, streamID, eventbus.EventCheckResult, result)
		}(ep)
	}
	wg.Wait()

	e.publish(ctx, streamID, eventbus.EventSweepEnd, nil)
	e.publish(ctx, streamID, eventbus.EventStreamDone, nil)

	metrics.SweepDuration.Observe(time.Since(started).Seconds())
	e.logger.Info("Sweep completed", "stream_id", streamID, "endpoints", len(endpoints), "duration", time.Since(started).String())
	return nil
}

// Ping re-checks a single endpoint by name. The result is also published as
// a result event on the active sweep stream, if any, so attached consumers
// merge it via upsert.
func (e *Engine) Ping(ctx context.Context, name string) (CheckResult, error) {
	ep, err := e.repo.GetByName(ctx, name)
	if err != nil {
		return CheckResult{}, err
	}

	result := e.runCheck(ctx, *ep)

	e.mu.Lock()
	streamID := e.currentStream
	e.mu.Unlock()
	if streamID != "" {
		e.publish(ctx, streamID, eventbus.EventCheckResult, result)
	}
	return result, nil
}

// runCheck performs the raw check and folds it through the strike tracker
// and history so the published status honours the hysteresis policy.
func (e *Engine) runCheck(ctx context.Context, ep Endpoint) CheckResult {
	result := e.checker.Check(ctx, ep)

	metrics.ChecksTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.CheckLatency.Observe(result.Latency / 1000.0)

	e.mu.Lock()
	defer e.mu.Unlock()

	key := ep.Name + "|" + ep.URL
	tracker, ok := e.trackers[key]
	if !ok {
		tracker = NewStatusTracker(e.cfg.StrikeThreshold)
		e.trackers[key] = tracker
	}

	observed := result.Status
	displayed := tracker.Observe(observed)
	if displayed != observed {
		metrics.StrikesRetained.Inc()
		result.Message = fmt.Sprintf("%s retained, %s strike %d of %d", displayed, observed, tracker.Strikes(), e.cfg.StrikeThreshold)
		result.Status = displayed
	}

	hist := append(e.history[key], displayed)
	if len(hist) > e.cfg.HistorySize {
		hist = hist[len(hist)-e.cfg.HistorySize:]
	}
	e.history[key] = hist

	okCount := 0
	for _, s := range hist {
		if s == StatusOK {
			okCount++
		}
	}
	result.Uptime = float64(okCount) / float64(len(hist)) * 100.0
	result.History = append([]Status(nil), hist...)

	return result
}

func (e *Engine) publish(ctx context.Context, streamID string, eventType eventbus.EventType, payload any) {
	event := eventbus.Event{
		Type:      eventType,
		StreamID:  streamID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if err := e.bus.Publish(ctx, streamID, event); err != nil {
		e.logger.Error("Failed to publish event", "type", eventType, "stream_id", streamID, "error", err)
	}
}
