package stream

import (
	"context"
	"net/url"

	client "github.com/mutablelogic/go-client"
)

// EventSource delivers raw stream payloads to a handler in strict arrival
// order. Run blocks until the server terminates the stream, the context is
// cancelled, or a transport error occurs. A non-nil error from the handler
// stops delivery.
type EventSource interface {
	Run(ctx context.Context, fn func(raw string) error) error
}

// SSESource consumes a server-sent event stream over HTTP.
type SSESource struct {
	client *client.Client
	path   []string
	query  url.Values
}

// NewSSESource opens no connection; the stream is dialled on Run.
func NewSSESource(endpoint string, path []string, query url.Values) (*SSESource, error) {
	c, err := client.New(client.OptEndpoint(endpoint))
	if err != nil {
		return nil, err
	}
	return &SSESource{client: c, path: path, query: query}, nil
}

func (s *SSESource) Run(ctx context.Context, fn func(raw string) error) error {
	pathArgs := make([]any, len(s.path))
	for i, p := range s.path {
		pathArgs[i] = p
	}
	opts := []client.RequestOpt{
		client.OptPath(pathArgs...),
		client.OptReqHeader("Accept", "text/event-stream"),
		client.OptNoTimeout(),
		client.OptTextStreamCallback(func(evt client.TextStreamEvent) error {
			return fn(evt.Data)
		}),
	}
	if len(s.query) > 0 {
		opts = append(opts, client.OptQuery(s.query))
	}

	// A non-nil out is required so the client proceeds to decode the
	// text stream instead of returning early.
	var discard struct{}
	return s.client.DoWithContext(ctx, client.NewRequest(), &discard, opts...)
}
