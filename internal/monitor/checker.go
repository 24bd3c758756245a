package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Checker performs a single HTTP health check against one endpoint.
type Checker struct {
	client      *http.Client
	timeout     time.Duration
	warnLatency time.Duration
}

func NewChecker(timeout, warnLatency time.Duration) *Checker {
	return &Checker{
		client:      &http.Client{Timeout: timeout},
		timeout:     timeout,
		warnLatency: warnLatency,
	}
}

// Check pings the endpoint once and classifies the outcome. An endpoint
// without a URL is reported as N/A (unconfigured provider), not a failure.
func (c *Checker) Check(ctx context.Context, ep Endpoint) CheckResult {
	result := CheckResult{
		Name:     ep.Name,
		Endpoint: ep.URL,
		Category: ep.Category,
		Source:   ep.Source,
		DataType: ep.DataType,
		PingTime: FormatPingTime(time.Now()),
	}

	if ep.URL == "" {
		result.Endpoint = ep.Name
		result.Status = StatusNA
		result.Message = "no endpoint configured"
		return result
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, ep.URL, nil)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("bad endpoint url: %v", err)
		return result
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	result.Latency = float64(elapsed.Microseconds()) / 1000.0

	if err != nil {
		if isTimeout(err) {
			result.Status = StatusTimeout
			result.Message = fmt.Sprintf("no response within %s", c.timeout)
		} else {
			result.Status = StatusFail
			result.Message = err.Error()
		}
		return result
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("http %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("http %d", resp.StatusCode)
	case elapsed > c.warnLatency:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("slow response (%s)", elapsed.Round(time.Millisecond))
	default:
		result.Status = StatusOK
	}
	return result
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
