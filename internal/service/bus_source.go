package service

import (
	"context"
	"encoding/json"
	"time"

	"investmon/internal/eventbus"
)

// wireEvent is the payload shape shared by the SSE endpoint and the
// in-process consumer: {type, timestamp, data}.
type wireEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func EncodeWire(evt eventbus.Event) (string, error) {
	w := wireEvent{
		Type: string(evt.Type),
		Data: evt.Payload,
	}
	if !evt.Timestamp.IsZero() {
		w.Timestamp = evt.Timestamp.Format(time.RFC3339)
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// busSource adapts an event-bus subscription into a stream.EventSource, so
// the server's own snapshot consumer runs the exact machinery a remote SSE
// client does.
type busSource struct {
	bus      eventbus.EventBus
	streamID string
}

func (b *busSource) Run(ctx context.Context, fn func(string) error) error {
	ch, err := b.bus.Subscribe(ctx, b.streamID)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			// Normally the end event has already stopped the consumer
			// by the time stream.done arrives.
			if evt.Type == eventbus.EventStreamDone {
				return nil
			}
			raw, err := EncodeWire(evt)
			if err != nil {
				continue
			}
			if err := fn(raw); err != nil {
				return err
			}
		}
	}
}
