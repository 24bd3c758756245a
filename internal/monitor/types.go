package monitor

import "time"

type Status string

const (
	StatusOK      Status = "OK"
	StatusWarn    Status = "WARN"
	StatusFail    Status = "FAIL"
	StatusTimeout Status = "TIMEOUT"
	StatusNA      Status = "N/A"
)

// Adverse reports whether a status counts as a strike for hysteresis
// purposes. N/A is not adverse: an unconfigured endpoint is not an outage.
func (s Status) Adverse() bool {
	return s == StatusFail || s == StatusTimeout
}

// Endpoint is one monitored API target.
type Endpoint struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Source   string `json:"source"`
	DataType string `json:"data_type"`
	Enabled  bool   `json:"enabled"`
}

// CheckResult is one row of monitoring output. Identity is (Name, Endpoint);
// a later result with the same identity replaces the earlier one in place.
type CheckResult struct {
	Name     string   `json:"name"`
	Endpoint string   `json:"endpoint"`
	Category string   `json:"category"`
	Source   string   `json:"source"`
	DataType string   `json:"data_type"`
	Status   Status   `json:"status"`
	Latency  float64  `json:"latency"` // milliseconds
	PingTime string   `json:"ping_time"`
	Uptime   float64  `json:"uptime"` // percent of OK results in history
	Message  string   `json:"message,omitempty"`
	History  []Status `json:"history,omitempty"`
}

// Valid reports whether the result carries its identity fields.
func (r CheckResult) Valid() bool {
	return r.Name != "" && r.Endpoint != ""
}

// Summary is derived from current results by a full scan, never tracked
// incrementally.
type Summary struct {
	Total int `json:"total"`
	OK    int `json:"ok"`
	Warn  int `json:"warn"`
	Fail  int `json:"fail"`
}

const SweepTask = "monitor:sweep"

type SweepPayload struct {
	StreamID string `json:"stream_id"`
}

func FormatPingTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
