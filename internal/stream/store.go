package stream

import (
	"errors"

	"investmon/internal/monitor"
)

var ErrInvalidResult = errors.New("result is missing identity fields")

// Dimension selects the grouping label for ResultStore.GroupBy.
type Dimension string

const (
	ByCategory Dimension = "category"
	BySource   Dimension = "source"
	ByDataType Dimension = "data_type"
)

type resultKey struct {
	name     string
	endpoint string
}

// ResultStore is an append-only collection of check results keyed by
// (name, endpoint). An upsert for a known key replaces the entry in place,
// preserving its original position, so table rows never reorder when a
// single endpoint is re-pinged. The store is not safe for concurrent use;
// the owning session serialises access.
type ResultStore struct {
	items []monitor.CheckResult
	index map[resultKey]int
}

func NewResultStore() *ResultStore {
	return &ResultStore{index: make(map[resultKey]int)}
}

// Upsert inserts a new result or replaces the existing entry with the same
// identity. Results without identity fields are rejected; the caller skips
// and logs, the store stays intact.
func (s *ResultStore) Upsert(item monitor.CheckResult) error {
	if !item.Valid() {
		return ErrInvalidResult
	}
	key := resultKey{name: item.Name, endpoint: item.Endpoint}
	if pos, ok := s.index[key]; ok {
		s.items[pos] = item
		return nil
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, item)
	return nil
}

// Merge applies a possibly-partial result: for a known key, non-zero fields
// of the incoming result overwrite the stored entry field by field
// (last-write-wins), so a poll fallback never destructively replaces state
// the stream already established. Unknown keys insert as usual.
func (s *ResultStore) Merge(item monitor.CheckResult) error {
	if !item.Valid() {
		return ErrInvalidResult
	}
	key := resultKey{name: item.Name, endpoint: item.Endpoint}
	pos, ok := s.index[key]
	if !ok {
		return s.Upsert(item)
	}
	mergeResult(&s.items[pos], item)
	return nil
}

// Len returns the number of distinct results.
func (s *ResultStore) Len() int {
	return len(s.items)
}

// Items returns a copy of the results in insertion order.
func (s *ResultStore) Items() []monitor.CheckResult {
	out := make([]monitor.CheckResult, len(s.items))
	copy(out, s.items)
	return out
}

// Summary recomputes the status buckets by scanning current contents.
// Recounting on every call avoids drift from partial updates.
func (s *ResultStore) Summary() monitor.Summary {
	var sum monitor.Summary
	sum.Total = len(s.items)
	for _, item := range s.items {
		switch item.Status {
		case monitor.StatusOK:
			sum.OK++
		case monitor.StatusWarn:
			sum.Warn++
		case monitor.StatusFail, monitor.StatusTimeout:
			sum.Fail++
		}
	}
	return sum
}

// GroupBy returns a label-to-sublist mapping over the chosen dimension.
// Order within a group matches discovery order from the stream.
func (s *ResultStore) GroupBy(dim Dimension) map[string][]monitor.CheckResult {
	groups := make(map[string][]monitor.CheckResult)
	for _, item := range s.items {
		var label string
		switch dim {
		case ByCategory:
			label = item.Category
		case BySource:
			label = item.Source
		case ByDataType:
			label = item.DataType
		}
		groups[label] = append(groups[label], item)
	}
	return groups
}

// Clone returns an independent copy of the store.
func (s *ResultStore) Clone() *ResultStore {
	out := NewResultStore()
	out.items = s.Items()
	for key, pos := range s.index {
		out.index[key] = pos
	}
	return out
}

// Reset discards all results.
func (s *ResultStore) Reset() {
	s.items = nil
	s.index = make(map[resultKey]int)
}

func mergeResult(dst *monitor.CheckResult, src monitor.CheckResult) {
	if src.Category != "" {
		dst.Category = src.Category
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
	if src.DataType != "" {
		dst.DataType = src.DataType
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if src.Latency != 0 {
		dst.Latency = src.Latency
	}
	if src.PingTime != "" {
		dst.PingTime = src.PingTime
	}
	if src.Uptime != 0 {
		dst.Uptime = src.Uptime
	}
	if src.Message != "" {
		dst.Message = src.Message
	}
	if len(src.History) > 0 {
		dst.History = append([]monitor.Status(nil), src.History...)
	}
}
