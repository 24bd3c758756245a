package api

import (
	"time"

	"investmon/internal/monitor"
	"investmon/internal/settings"
	"investmon/internal/stream"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

type SnapshotResponse struct {
	StreamRunning bool            `json:"stream_running"`
	Snapshot      stream.Snapshot `json:"snapshot"`
}

type PingResponse struct {
	Result monitor.CheckResult `json:"result"`
}

type ConfigResponse struct {
	Providers []settings.ProviderStatus `json:"providers"`
}

// ConfigRequest is the provider-credential key bag. Values are write-only.
type ConfigRequest map[string]string

type StyleResponse struct {
	Settings settings.StyleSettings `json:"settings"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
