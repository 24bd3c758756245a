package eventbus

import "context"

type EventBus interface {
	Publish(ctx context.Context, streamID string, event Event) error
	Subscribe(ctx context.Context, streamID string) (<-chan Event, error)
}
