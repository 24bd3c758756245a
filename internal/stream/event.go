package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"investmon/internal/monitor"
)

var ErrMalformedEvent = errors.New("malformed stream event")

type EventKind string

const (
	KindStart         EventKind = "start"
	KindResult        EventKind = "result"
	KindEnd           EventKind = "end"
	KindAgentProgress EventKind = "agent_progress"
	KindAgentComplete EventKind = "agent_complete"
	KindLog           EventKind = "log"
	KindStageStart    EventKind = "stage_start"
	KindStageComplete EventKind = "stage_complete"

	// KindIgnored marks a syntactically valid event whose type this
	// consumer does not know. Unknown types are accepted and skipped,
	// never treated as errors.
	KindIgnored EventKind = "ignored"
)

// Event is one decoded stream message.
type Event struct {
	Kind      EventKind
	Timestamp string

	// result
	Item *monitor.CheckResult

	// agent_progress / agent_complete / stage_* / log
	Agent    string
	Stage    string
	Progress int
	Message  string
}

type envelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type agentPayload struct {
	Agent    string `json:"agent"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ParseEvent decodes one raw SSE message payload. Parsing is pure and
// synchronous; a failure means the single event should be logged and
// dropped, the stream continues.
func ParseEvent(raw string) (Event, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	switch EventKind(env.Type) {
	case KindStart:
		return Event{Kind: KindStart, Timestamp: env.Timestamp}, nil

	case KindEnd:
		return Event{Kind: KindEnd, Timestamp: env.Timestamp}, nil

	case KindResult:
		var item monitor.CheckResult
		if err := json.Unmarshal(env.Data, &item); err != nil {
			return Event{}, fmt.Errorf("%w: result payload: %v", ErrMalformedEvent, err)
		}
		return Event{Kind: KindResult, Timestamp: env.Timestamp, Item: &item}, nil

	case KindAgentProgress, KindAgentComplete, KindStageStart, KindStageComplete, KindLog:
		var p agentPayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return Event{}, fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, env.Type, err)
			}
		}
		return Event{
			Kind:      EventKind(env.Type),
			Timestamp: env.Timestamp,
			Agent:     p.Agent,
			Stage:     p.Stage,
			Progress:  p.Progress,
			Message:   p.Message,
		}, nil

	default:
		// Forward-compatible: an unrecognised type is skipped upstream.
		return Event{Kind: KindIgnored}, nil
	}
}
