package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"investmon/internal/eventbus"
)

type memoryRepo struct {
	endpoints []Endpoint
}

func (r *memoryRepo) List(ctx context.Context) ([]Endpoint, error) {
	return r.endpoints, nil
}

func (r *memoryRepo) GetByName(ctx context.Context, name string) (*Endpoint, error) {
	for _, ep := range r.endpoints {
		if ep.Name == name {
			return &ep, nil
		}
	}
	return nil, ErrEndpointNotFound
}

func (r *memoryRepo) Upsert(ctx context.Context, ep *Endpoint) error {
	r.endpoints = append(r.endpoints, *ep)
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(ctx context.Context, streamID string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, streamID string) (<-chan eventbus.Event, error) {
	ch := make(chan eventbus.Event)
	close(ch)
	return ch, nil
}

func (b *recordingBus) recorded() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]eventbus.Event, len(b.events))
	copy(out, b.events)
	return out
}

func engineLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestEngineSweepPublishesOrderedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &memoryRepo{endpoints: []Endpoint{
		{Name: "a", URL: srv.URL, Category: "market", Source: "alpaca", Enabled: true},
		{Name: "b", URL: srv.URL, Category: "news", Source: "tiingo", Enabled: true},
		{Name: "skipped", URL: srv.URL, Enabled: false},
	}}
	bus := &recordingBus{}

	e := NewEngine(repo, NewChecker(time.Second, time.Second), bus, engineLogger(), EngineConfig{
		StrikeThreshold: 3,
		HistorySize:     10,
		Concurrency:     4,
	})
	if err := e.Sweep(context.Background(), "s1"); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	events := bus.recorded()
	if len(events) != 5 {
		t.Fatalf("Expected start + 2 results + end + done, got %d events: %+v", len(events), events)
	}
}

func TestEngineSweepEventSequence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &memoryRepo{endpoints: []Endpoint{
		{Name: "a", URL: srv.URL, Enabled: true},
		{Name: "b", URL: srv.URL, Enabled: true},
	}}
	bus := &recordingBus{}

	e := NewEngine(repo, NewChecker(time.Second, time.Second), bus, engineLogger(), EngineConfig{
		StrikeThreshold: 3,
		HistorySize:     10,
		Concurrency:     2,
	})
	if err := e.Sweep(context.Background(), "s1"); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	events := bus.recorded()
	if events[0].Type != eventbus.EventSweepStart {
		t.Errorf("First event must be start, got %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != eventbus.EventStreamDone {
		t.Errorf("Last event must be stream.done, got %s", last.Type)
	}
	if events[len(events)-2].Type != eventbus.EventSweepEnd {
		t.Errorf("Terminal end event missing, got %s", events[len(events)-2].Type)
	}

	resultCount := 0
	for _, evt := range events {
		if evt.Type == eventbus.EventCheckResult {
			resultCount++
		}
	}
	if resultCount != 2 {
		t.Errorf("Expected 2 result events, got %d", resultCount)
	}
}

func TestEngineRetainsStatusUntilStrikeThreshold(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &memoryRepo{endpoints: []Endpoint{{Name: "a", URL: srv.URL, Enabled: true}}}
	bus := &recordingBus{}

	e := NewEngine(repo, NewChecker(time.Second, time.Second), bus, engineLogger(), EngineConfig{
		StrikeThreshold: 3,
		HistorySize:     10,
		Concurrency:     1,
	})

	sweepResult := func(streamID string) CheckResult {
		t.Helper()
		if err := e.Sweep(context.Background(), streamID); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		for _, evt := range bus.recorded() {
			if evt.Type == eventbus.EventCheckResult && evt.StreamID == streamID {
				return evt.Payload.(CheckResult)
			}
		}
		t.Fatal("No result event recorded")
		return CheckResult{}
	}

	if got := sweepResult("s1").Status; got != StatusOK {
		t.Fatalf("Expected OK baseline, got %s", got)
	}

	failing.Store(true)
	if got := sweepResult("s2").Status; got != StatusOK {
		t.Errorf("First failure flipped displayed status to %s", got)
	}
	if got := sweepResult("s3").Status; got != StatusOK {
		t.Errorf("Second failure flipped displayed status to %s", got)
	}
	if got := sweepResult("s4").Status; got != StatusFail {
		t.Errorf("Third consecutive failure must display FAIL, got %s", got)
	}
}

func TestEnginePingUnknownEndpoint(t *testing.T) {
	e := NewEngine(&memoryRepo{}, NewChecker(time.Second, time.Second), &recordingBus{}, engineLogger(), EngineConfig{
		StrikeThreshold: 3,
		HistorySize:     10,
		Concurrency:     1,
	})
	if _, err := e.Ping(context.Background(), "missing"); !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("Expected ErrEndpointNotFound, got %v", err)
	}
}

func TestEngineUptimeTracksHistory(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &memoryRepo{endpoints: []Endpoint{{Name: "a", URL: srv.URL, Enabled: true}}}
	e := NewEngine(repo, NewChecker(time.Second, time.Second), &recordingBus{}, engineLogger(), EngineConfig{
		StrikeThreshold: 1,
		HistorySize:     4,
		Concurrency:     1,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := e.Ping(ctx, "a"); err != nil {
			t.Fatalf("Ping failed: %v", err)
		}
	}
	failing.Store(true)
	result, err := e.Ping(ctx, "a")
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if len(result.History) != 3 {
		t.Fatalf("Expected 3 history entries, got %d", len(result.History))
	}
	// 2 OK out of 3 checks.
	want := 2.0 / 3.0 * 100.0
	if result.Uptime < want-0.01 || result.Uptime > want+0.01 {
		t.Errorf("Expected uptime %.2f, got %.2f", want, result.Uptime)
	}
}
