package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"investmon/internal/eventbus"
	"investmon/internal/monitor"
	"investmon/internal/settings"
	"investmon/internal/stream"
)

// SlotAPIMonitor is the logical stream type for the endpoint health sweep.
const SlotAPIMonitor = "api-monitor"

// Service coordinates the monitor engine, the event bus, the stream cache
// and settings for the HTTP handlers.
type Service struct {
	Engine      *monitor.Engine
	Bus         eventbus.EventBus
	Settings    *settings.Store
	Registry    *stream.Registry
	QueueClient *asynq.Client
	Logger      *slog.Logger

	mu              sync.Mutex
	currentStreamID string
}

func NewService(
	engine *monitor.Engine,
	bus eventbus.EventBus,
	settingsStore *settings.Store,
	registry *stream.Registry,
	queueClient *asynq.Client,
	logger *slog.Logger,
) *Service {
	return &Service{
		Engine:      engine,
		Bus:         bus,
		Settings:    settingsStore,
		Registry:    registry,
		QueueClient: queueClient,
		Logger:      logger,
	}
}

// StartSweep resets the shared cache, attaches the in-process snapshot
// consumer and enqueues the sweep task. It fails with ErrAlreadyRunning if
// a sweep stream is live; callers then attach to the running stream
// instead of starting a second one.
func (s *Service) StartSweep(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.Registry.Slot(SlotAPIMonitor)
	if slot.IsRunning() {
		return "", stream.ErrAlreadyRunning
	}

	streamID := uuid.New().String()

	// The explicit restart is the one point where the cache is cleared.
	if err := slot.Reset(); err != nil {
		return "", err
	}

	sess := stream.NewSession(slot, &busSource{bus: s.Bus, streamID: streamID}, s.Logger)
	if err := sess.Start(context.WithoutCancel(ctx)); err != nil {
		return "", err
	}

	payload, _ := json.Marshal(monitor.SweepPayload{StreamID: streamID})
	task := asynq.NewTask(monitor.SweepTask, payload)
	info, err := s.QueueClient.Enqueue(task)
	if err != nil {
		// Tear the consumer back down; nothing will ever publish.
		_ = sess.Cancel()
		return "", fmt.Errorf("enqueue sweep: %w", err)
	}

	s.currentStreamID = streamID
	s.Logger.Info("Sweep started", "stream_id", streamID, "task_id", info.ID)
	return streamID, nil
}

// AttachStream subscribes the caller to the live sweep stream, starting a
// new sweep when none is running. The returned channel carries bus events
// until the terminal event.
func (s *Service) AttachStream(ctx context.Context) (string, <-chan eventbus.Event, error) {
	slot := s.Registry.Slot(SlotAPIMonitor)

	var streamID string
	if slot.IsRunning() {
		s.mu.Lock()
		streamID = s.currentStreamID
		s.mu.Unlock()
	} else {
		id, err := s.StartSweep(ctx)
		if err != nil {
			return "", nil, err
		}
		streamID = id
	}

	ch, err := s.Bus.Subscribe(ctx, streamID)
	if err != nil {
		return "", nil, err
	}
	return streamID, ch, nil
}

// Snapshot returns the current monitor cache state, possibly mid-sweep.
func (s *Service) Snapshot() stream.Snapshot {
	return s.Registry.Slot(SlotAPIMonitor).Snapshot()
}

// IsSweeping reports whether a sweep stream is currently live.
func (s *Service) IsSweeping() bool {
	return s.Registry.Slot(SlotAPIMonitor).IsRunning()
}

// Ping re-checks one endpoint. While a sweep is live the result reaches the
// cache through the stream; otherwise it is merged into the frozen
// snapshot in place.
func (s *Service) Ping(ctx context.Context, name string) (monitor.CheckResult, error) {
	result, err := s.Engine.Ping(ctx, name)
	if err != nil {
		return monitor.CheckResult{}, err
	}

	slot := s.Registry.Slot(SlotAPIMonitor)
	if !slot.IsRunning() {
		if err := slot.Apply(result); err != nil {
			s.Logger.Warn("Failed to merge ping result into snapshot", "name", name, "error", err)
		}
	}
	return result, nil
}

// Providers reports which data providers have credentials configured.
func (s *Service) Providers(ctx context.Context) ([]settings.ProviderStatus, error) {
	return s.Settings.Providers(ctx)
}

// SetProviders stores provider credentials.
func (s *Service) SetProviders(ctx context.Context, values map[string]string) error {
	return s.Settings.SetProviders(ctx, values)
}

// Style returns the persisted style settings or defaults.
func (s *Service) Style(ctx context.Context) (settings.StyleSettings, error) {
	return s.Settings.Style(ctx)
}

// SetStyle persists style settings.
func (s *Service) SetStyle(ctx context.Context, style settings.StyleSettings) error {
	return s.Settings.SetStyle(ctx, style)
}
