package monitor

// StatusTracker applies a strike policy to raw check outcomes: an adverse
// result (FAIL or TIMEOUT) only becomes the displayed status after Threshold
// consecutive adverse observations. A single timeout during a long-running
// backend operation therefore never flips the displayed status.
type StatusTracker struct {
	threshold int
	displayed Status
	strikes   int
}

func NewStatusTracker(threshold int) *StatusTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &StatusTracker{threshold: threshold}
}

// Observe records one raw outcome and returns the status to display.
func (t *StatusTracker) Observe(observed Status) Status {
	if !observed.Adverse() {
		t.strikes = 0
		t.displayed = observed
		return t.displayed
	}

	t.strikes++
	if t.displayed == "" || t.strikes >= t.threshold {
		// Nothing to retain, or the strike budget is spent.
		t.displayed = observed
		return t.displayed
	}
	return t.displayed
}

// Displayed returns the current displayed status without recording an
// observation.
func (t *StatusTracker) Displayed() Status {
	return t.displayed
}

// Strikes returns the current consecutive adverse count.
func (t *StatusTracker) Strikes() int {
	return t.strikes
}
