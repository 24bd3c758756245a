package stream

import (
	"errors"
	"sync"
	"time"

	"investmon/internal/monitor"
)

var ErrAlreadyRunning = errors.New("a session is already running for this slot")

// Snapshot is a copy-on-read view of one slot: a render may never observe a
// half-updated array.
type Snapshot struct {
	Items      []monitor.CheckResult `json:"items"`
	Categories []string              `json:"categories"`
	Sources    []string              `json:"sources"`
	Summary    monitor.Summary       `json:"summary"`
	LastUpdate time.Time             `json:"last_update"`
	Complete   bool                  `json:"is_complete"`
}

// Registry is the process-wide cache service: one named slot per logical
// stream type, addressable by any consumer regardless of its own lifecycle.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*Slot
}

func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*Slot)}
}

// Slot returns the named slot, creating it lazily on first use.
func (r *Registry) Slot(name string) *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[name]
	if !ok {
		slot = &Slot{name: name, store: NewResultStore()}
		r.slots[name] = slot
	}
	return slot
}

// Slot holds the cached state for one logical stream type. It survives
// consumer teardown and is cleared only when a new stream is explicitly
// started. Invariant: Complete == true implies no live session is
// registered against the slot.
type Slot struct {
	name string

	mu         sync.Mutex
	store      *ResultStore
	lastUpdate time.Time
	complete   bool
	running    *Session
}

func (s *Slot) Name() string {
	return s.name
}

// IsRunning reports whether a live session currently owns this slot.
// Consumers must check this before starting: if true, attach as a passive
// observer instead of opening a second stream.
func (s *Slot) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running != nil
}

// Snapshot returns a deep copy of the current state, possibly mid-stream.
func (s *Slot) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Reset clears the slot. Callers invoke this before explicitly starting a
// new stream; it is illegal while a session is running.
func (s *Slot) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil {
		return ErrAlreadyRunning
	}
	s.store.Reset()
	s.lastUpdate = time.Time{}
	s.complete = false
	return nil
}

// Apply merges a single out-of-band result (a manual re-ping while no
// stream is running) into the frozen snapshot.
func (s *Slot) Apply(item monitor.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Merge(item); err != nil {
		return err
	}
	s.lastUpdate = time.Now()
	return nil
}

func (s *Slot) snapshotLocked() Snapshot {
	items := s.store.Items()
	return Snapshot{
		Items:      items,
		Categories: distinct(items, ByCategory),
		Sources:    distinct(items, BySource),
		Summary:    s.store.Summary(),
		LastUpdate: s.lastUpdate,
		Complete:   s.complete,
	}
}

// register claims the slot for a starting session.
func (s *Slot) register(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil {
		return ErrAlreadyRunning
	}
	s.running = sess
	s.complete = false
	return nil
}

// publish replaces the cached results with the session's current view.
func (s *Slot) publish(store *ResultStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store.Clone()
	s.lastUpdate = time.Now()
}

// release freezes the session's final snapshot and clears the handle. The
// complete flag and the handle change in the same critical section, so the
// completeness invariant holds at every observable instant.
func (s *Slot) release(sess *Session, store *ResultStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != sess {
		return
	}
	s.running = nil
	s.store = store.Clone()
	s.lastUpdate = time.Now()
	s.complete = true
}

// distinct returns the labels of a dimension in discovery order.
func distinct(items []monitor.CheckResult, dim Dimension) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, item := range items {
		var label string
		switch dim {
		case ByCategory:
			label = item.Category
		case BySource:
			label = item.Source
		case ByDataType:
			label = item.DataType
		}
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
