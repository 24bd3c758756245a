package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"investmon/internal/metrics"
	"investmon/internal/monitor"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var (
	ErrSessionActive = errors.New("session already started")
	ErrNotStreaming  = errors.New("session is not connecting or streaming")

	// errStreamEnded stops the event source after a server-sent terminal.
	errStreamEnded = errors.New("stream ended")
)

// PollFunc fetches the current upstream snapshot out of band. Poll results
// are merged field-wise into the same store the stream writes, so a poll
// and an in-flight stream event never clobber each other.
type PollFunc func(ctx context.Context) ([]monitor.CheckResult, error)

type Option func(*Session)

// WithObserver registers a callback for non-result events (agent progress,
// stage markers, log lines). Events are delivered in stream order.
func WithObserver(fn func(Event)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithPollFallback runs fn on the given interval while the session is live,
// in case the stream silently stalls.
func WithPollFallback(fn PollFunc, interval time.Duration) Option {
	return func(s *Session) {
		s.pollFn = fn
		s.pollInterval = interval
	}
}

// Session owns one stream consumer lifecycle: connect, dispatch in delivery
// order, terminal detection, manual cancellation. Terminal states persist
// the final snapshot into the shared slot; a mid-stream transport error
// freezes whatever partial results were collected, it never discards them.
type Session struct {
	id     string
	slot   *Slot
	source EventSource
	logger *slog.Logger

	observer     func(Event)
	pollFn       PollFunc
	pollInterval time.Duration

	mu        sync.Mutex
	state     State
	store     *ResultStore
	startedAt string
	active    bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSession(slot *Slot, source EventSource, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New().String(),
		slot:   slot,
		source: source,
		state:  StateIdle,
		store:  NewResultStore(),
	}
	s.logger = logger.With("component", "stream", "session_id", s.id)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Idle/Completed/Failed -> Connecting, claims the shared
// slot and begins consuming the source. Prior per-session accumulation is
// cleared; the shared slot is reset by the caller beforehand.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle, StateCompleted, StateFailed:
	default:
		return ErrSessionActive
	}

	if err := s.slot.register(s); err != nil {
		return err
	}

	s.store = NewResultStore()
	s.startedAt = ""
	s.state = StateConnecting
	s.active = true
	s.done = make(chan struct{})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	metrics.StreamSessionsActive.Inc()

	go s.run(runCtx)
	if s.pollFn != nil {
		go s.pollLoop(runCtx)
	}
	return nil
}

// Cancel force-closes the stream from Connecting/Streaming. The session
// moves to Completed and the slot is marked complete without waiting for a
// server-sent terminal. Callbacks already queued before Cancel observe the
// active flag and become no-ops.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.state != StateConnecting && s.state != StateStreaming {
		s.mu.Unlock()
		return ErrNotStreaming
	}
	s.terminalLocked(StateCompleted)
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	return nil
}

// Wait blocks until the session reaches a terminal state.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Session) run(ctx context.Context) {
	err := s.source.Run(ctx, s.handleRaw)
	s.finish(err)
}

// handleRaw processes one raw payload. Delivery order is the source's
// arrival order; no batching or reordering.
func (s *Session) handleRaw(raw string) error {
	evt, err := ParseEvent(raw)
	if err != nil {
		// Drop the single event, keep the stream alive.
		s.logger.Warn("Dropping malformed stream event", "error", err)
		return nil
	}
	if evt.Kind == KindIgnored {
		return nil
	}

	var observed *Event

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}

	switch evt.Kind {
	case KindStart:
		s.state = StateStreaming
		s.startedAt = evt.Timestamp

	case KindResult:
		if err := s.store.Upsert(*evt.Item); err != nil {
			s.logger.Warn("Skipping invalid result", "error", err)
			break
		}
		s.slot.publish(s.store)

	case KindEnd:
		s.terminalLocked(StateCompleted)
		s.mu.Unlock()
		return errStreamEnded

	default:
		if s.observer != nil {
			observed = &evt
		}
	}
	s.mu.Unlock()

	if observed != nil {
		s.observer(*observed)
	}
	return nil
}

// finish resolves the terminal state once the source returns. A transport
// error mid-stream lands in Failed with all collected results retained; a
// server terminal or Cancel has already resolved the state.
func (s *Session) finish(err error) {
	s.mu.Lock()
	switch {
	case s.state == StateCompleted || s.state == StateFailed:
		// end event or Cancel got here first

	case errors.Is(err, errStreamEnded):
		s.terminalLocked(StateCompleted)

	case errors.Is(err, context.Canceled):
		s.terminalLocked(StateCompleted)

	default:
		// Transport error, or the stream closed without a terminal event.
		if err != nil {
			s.logger.Error("Stream failed", "error", err)
		} else {
			s.logger.Error("Stream closed without terminal event")
		}
		s.terminalLocked(StateFailed)
	}
	done := s.done
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
}

// terminalLocked moves to a terminal state exactly once: it stops further
// mutation from late callbacks, freezes the final snapshot into the slot
// and clears the process-wide handle.
func (s *Session) terminalLocked(state State) {
	if !s.active {
		return
	}
	s.active = false
	s.state = state
	s.slot.release(s, s.store)
	metrics.StreamSessionsActive.Dec()
}

func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			items, err := s.pollFn(ctx)
			if err != nil {
				s.logger.Warn("Poll fallback failed", "error", err)
				continue
			}

			s.mu.Lock()
			if !s.active {
				s.mu.Unlock()
				return
			}
			for _, item := range items {
				if err := s.store.Merge(item); err != nil {
					s.logger.Warn("Skipping invalid poll result", "error", err)
				}
			}
			s.slot.publish(s.store)
			s.mu.Unlock()
		}
	}
}
