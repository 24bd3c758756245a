package eventbus

import "time"

type EventType string

const (
	EventSweepStart  EventType = "start"
	EventCheckResult EventType = "result"
	EventSweepEnd    EventType = "end"
	EventLog         EventType = "log"

	// EventStreamDone is an internal signal telling SSE bridges to close
	// the connection. It is never forwarded to clients.
	EventStreamDone EventType = "stream.done"
)

type Event struct {
	Type      EventType `json:"type"`
	StreamID  string    `json:"stream_id"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func StreamChannelKey(streamID string) string {
	return "stream:" + streamID + ":events"
}
