package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	client "github.com/mutablelogic/go-client"

	"investmon/internal/api"
	"investmon/internal/monitor"
	"investmon/internal/service"
	"investmon/internal/stream"
)

// monitorctl attaches to a running investmon server's sweep stream and
// renders the results as they arrive. If the stream stalls, a periodic
// snapshot poll keeps the view converging.
func main() {
	endpoint := flag.String("endpoint", "http://localhost:8080", "investmon server base URL")
	pollInterval := flag.Duration("poll", 15*time.Second, "snapshot poll fallback interval (0 disables)")
	verbose := flag.Bool("v", false, "log stream lifecycle events")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *endpoint, *pollInterval, logger); err != nil {
		fmt.Fprintln(os.Stderr, "monitorctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, endpoint string, pollInterval time.Duration, logger *slog.Logger) error {
	src, err := stream.NewSSESource(endpoint, []string{"api", "monitor", "stream"}, nil)
	if err != nil {
		return err
	}

	registry := stream.NewRegistry()
	slot := registry.Slot(service.SlotAPIMonitor)

	opts := []stream.Option{
		stream.WithObserver(func(evt stream.Event) {
			logger.Debug("Stream event", "kind", string(evt.Kind), "message", evt.Message)
		}),
	}
	if pollInterval > 0 {
		poll, err := snapshotPoller(endpoint)
		if err != nil {
			return err
		}
		opts = append(opts, stream.WithPollFallback(poll, pollInterval))
	}

	sess := stream.NewSession(slot, src, logger, opts...)
	if err := sess.Start(ctx); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		// Cancel is a no-op error when the session already finished.
		_ = sess.Cancel()
	}()

	sess.Wait()

	snap := slot.Snapshot()
	render(os.Stdout, snap)

	if sess.State() == stream.StateFailed {
		return fmt.Errorf("stream failed with %d partial results", len(snap.Items))
	}
	return nil
}

// snapshotPoller fetches the server-side cache as the stream fallback.
func snapshotPoller(endpoint string) (stream.PollFunc, error) {
	c, err := client.New(client.OptEndpoint(endpoint))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) ([]monitor.CheckResult, error) {
		var resp api.SnapshotResponse
		if err := c.DoWithContext(ctx, client.NewRequest(), &resp,
			client.OptPath("api", "monitor", "snapshot"),
		); err != nil {
			return nil, err
		}
		return resp.Snapshot.Items, nil
	}, nil
}

func render(out *os.File, snap stream.Snapshot) {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tLATENCY\tUPTIME\tSOURCE\tMESSAGE")
	for _, item := range snap.Items {
		fmt.Fprintf(w, "%s\t%s\t%.1fms\t%.1f%%\t%s\t%s\n",
			item.Name, item.Status, item.Latency, item.Uptime, item.Source, item.Message)
	}
	w.Flush()

	sum := snap.Summary
	fmt.Fprintf(out, "\n%d checked: %d ok, %d warn, %d fail\n", sum.Total, sum.OK, sum.Warn, sum.Fail)
}
