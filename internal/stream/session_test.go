package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"investmon/internal/monitor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func resultJSON(name, endpoint, status string) string {
	return fmt.Sprintf(`{"type":"result","data":{"name":%q,"endpoint":%q,"category":"market","source":"alpaca","data_type":"quotes","status":%q}}`, name, endpoint, status)
}

// scriptedSource replays a fixed event sequence, then returns err.
type scriptedSource struct {
	events []string
	err    error
}

func (s *scriptedSource) Run(ctx context.Context, fn func(string) error) error {
	for _, e := range s.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return s.err
}

// gatedSource delivers the before events, waits for the gate, then delivers
// the after events regardless of cancellation. The after events model
// callbacks that were already queued when the consumer cancelled.
type gatedSource struct {
	before []string
	after  []string
	gate   chan struct{}
}

func (g *gatedSource) Run(ctx context.Context, fn func(string) error) error {
	for _, e := range g.before {
		if err := fn(e); err != nil {
			return err
		}
	}
	<-g.gate
	for _, e := range g.after {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// blockingSource emits a start event and holds the stream open until
// released.
type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) Run(ctx context.Context, fn func(string) error) error {
	if err := fn(`{"type":"start","timestamp":"T0"}`); err != nil {
		return err
	}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestSessionHappyPath(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	src := &scriptedSource{events: []string{
		`{"type":"start","timestamp":"T0"}`,
		resultJSON("a", "https://a", "OK"),
		resultJSON("b", "https://b", "WARN"),
		resultJSON("c", "https://c", "FAIL"),
		`{"type":"end","timestamp":"T1"}`,
	}}

	s := NewSession(slot, src, testLogger())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Wait()

	if got := s.State(); got != StateCompleted {
		t.Errorf("Expected Completed, got %s", got)
	}
	if slot.IsRunning() {
		t.Error("Slot still reports a running session after terminal")
	}

	snap := slot.Snapshot()
	if !snap.Complete {
		t.Error("Snapshot not marked complete")
	}
	if len(snap.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(snap.Items))
	}
	want := monitor.Summary{Total: 3, OK: 1, Warn: 1, Fail: 1}
	if snap.Summary != want {
		t.Errorf("Expected summary %+v, got %+v", want, snap.Summary)
	}
}

func TestSessionDeduplicatesRepeatedKeys(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	src := &scriptedSource{events: []string{
		`{"type":"start","timestamp":"T0"}`,
		resultJSON("a", "https://a", "FAIL"),
		resultJSON("a", "https://a", "OK"),
		resultJSON("b", "https://b", "OK"),
		`{"type":"end","timestamp":"T1"}`,
	}}

	s := NewSession(slot, src, testLogger())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Wait()

	snap := slot.Snapshot()
	if len(snap.Items) != 2 {
		t.Fatalf("Expected 2 deduplicated items, got %d", len(snap.Items))
	}
	if snap.Items[0].Name != "a" || snap.Items[0].Status != monitor.StatusOK {
		t.Errorf("Repeated key not replaced in place: %+v", snap.Items[0])
	}
}

func TestSessionTransportErrorRetainsPartialResults(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	src := &scriptedSource{
		events: []string{
			`{"type":"start","timestamp":"T0"}`,
			resultJSON("a", "https://a", "OK"),
			resultJSON("b", "https://b", "OK"),
		},
		err: errors.New("connection reset"),
	}

	s := NewSession(slot, src, testLogger())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Wait()

	if got := s.State(); got != StateFailed {
		t.Errorf("Expected Failed, got %s", got)
	}
	snap := slot.Snapshot()
	if !snap.Complete {
		t.Error("Partial results not frozen as complete")
	}
	if len(snap.Items) != 2 {
		t.Errorf("Partial results lost on error: %d items", len(snap.Items))
	}
	if slot.IsRunning() {
		t.Error("Slot still reports running after failure")
	}
}

func TestSessionMalformedEventsAreDropped(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	src := &scriptedSource{events: []string{
		`{"type":"start","timestamp":"T0"}`,
		`garbage`,
		resultJSON("a", "https://a", "OK"),
		`{"type":"result","data":{"status":"OK"}}`, // missing identity
		`{"type":"end","timestamp":"T1"}`,
	}}

	s := NewSession(slot, src, testLogger())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Wait()

	if got := s.State(); got != StateCompleted {
		t.Errorf("Malformed events must not kill the stream, got %s", got)
	}
	if n := len(slot.Snapshot().Items); n != 1 {
		t.Errorf("Expected 1 item, got %d", n)
	}
}

func TestSessionCancelStopsLateCallbacks(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	src := &gatedSource{
		before: []string{
			`{"type":"start","timestamp":"T0"}`,
			resultJSON("a", "https://a", "OK"),
		},
		after: []string{
			resultJSON("b", "https://b", "OK"),
			resultJSON("c", "https://c", "OK"),
		},
		gate: make(chan struct{}),
	}

	s := NewSession(slot, src, testLogger())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return len(slot.Snapshot().Items) == 1 }, "first result")

	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := s.State(); got != StateCompleted {
		t.Errorf("Cancel must complete the session, got %s", got)
	}
	if !slot.Snapshot().Complete {
		t.Error("Cancel must mark the cache complete")
	}

	// Release the events that were already queued before Cancel. They must
	// be no-ops.
	close(src.gate)
	s.Wait()

	if n := len(slot.Snapshot().Items); n != 1 {
		t.Errorf("Late callbacks mutated state after Cancel: %d items", n)
	}
	if got := s.State(); got != StateCompleted {
		t.Errorf("State changed after Cancel: %s", got)
	}
}

func TestSessionCancelOnlyWhileLive(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	s := NewSession(slot, &scriptedSource{}, testLogger())
	if err := s.Cancel(); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("Cancel from Idle must fail, got %v", err)
	}
}

func TestSecondConsumerAttachesAsObserver(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	src := &blockingSource{release: make(chan struct{})}

	first := NewSession(slot, src, testLogger())
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, slot.IsRunning, "slot to register the session")

	// A second mount sees isRunning and must not open a second stream.
	second := NewSession(slot, &scriptedSource{}, testLogger())
	if err := second.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Second start must be rejected, got %v", err)
	}
	// It reads the shared snapshot instead.
	_ = slot.Snapshot()

	// Restarting the live session is equally illegal.
	if err := first.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("Start while live must fail, got %v", err)
	}

	close(src.release)
	first.Wait()
}

func TestSessionRestartAfterTerminal(t *testing.T) {
	slot := NewRegistry().Slot("api-monitor")
	src := &scriptedSource{events: []string{
		`{"type":"start","timestamp":"T0"}`,
		resultJSON("a", "https://a", "OK"),
		`{"type":"end","timestamp":"T1"}`,
	}}

	s := NewSession(slot, src, testLogger())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	s.Wait()

	// The caller resets the shared cache before an explicit restart.
	if err := slot.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Restart from terminal failed: %v", err)
	}
	s.Wait()

	if got := s.State(); got != StateCompleted {
		t.Errorf("Expected Completed after restart, got %s", got)
	}
	if n := len(slot.Snapshot().Items); n != 1 {
		t.Errorf("Expected 1 item after restart, got %d", n)
	}
}

func TestSessionObserverSeesEventsInOrder(t *testing.T) {
	slot := NewRegistry().Slot("analysis")
	src := &scriptedSource{events: []string{
		`{"type":"start","timestamp":"T0"}`,
		`{"type":"stage_start","data":{"stage":"fundamentals"}}`,
		`{"type":"agent_progress","data":{"agent":"news","progress":50}}`,
		`{"type":"log","data":{"message":"halfway"}}`,
		`{"type":"end","timestamp":"T1"}`,
	}}

	var kinds []EventKind
	s := NewSession(slot, src, testLogger(), WithObserver(func(evt Event) {
		kinds = append(kinds, evt.Kind)
	}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Wait()

	want := []EventKind{KindStageStart, KindAgentProgress, KindLog}
	if len(kinds) != len(want) {
		t.Fatalf("Expected %d observed events, got %d", len(want), len(kinds))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestSessionPollFallbackMergesIdempotently(t *testing.T) {
	slot := NewRegistry().Slot("analysis")
	src := &blockingSource{release: make(chan struct{})}

	poll := func(ctx context.Context) ([]monitor.CheckResult, error) {
		return []monitor.CheckResult{
			{Name: "a", Endpoint: "https://a", Status: monitor.StatusOK},
		}, nil
	}

	s := NewSession(slot, src, testLogger(), WithPollFallback(poll, 10*time.Millisecond))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return len(slot.Snapshot().Items) == 1 }, "poll result to land")

	// Several poll rounds must still yield a single entry.
	time.Sleep(50 * time.Millisecond)
	if n := len(slot.Snapshot().Items); n != 1 {
		t.Errorf("Poll fallback duplicated entries: %d", n)
	}

	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	s.Wait()
}
