package bridge

import "time"

// Result counts what one cycle did.
type Result struct {
	Found      int  `json:"found"`
	Skipped    int  `json:"skipped"` // already processed or passed over
	Stale      int  `json:"stale"`   // older than the lookback window
	Ignored    int  `json:"ignored"` // no usable text
	Forwarded  int  `json:"forwarded"`
	Failed     int  `json:"failed"`
	DedupReset bool `json:"dedup_reset,omitempty"`
}

// Status is the loop state shown by /status.
type Status struct {
	Running             bool   `json:"running"`
	LastRunAt           string `json:"last_run_at,omitempty"`
	LastOkAt            string `json:"last_ok_at,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	LastResult          Result `json:"last_result"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	NextRunAt           string `json:"next_run_at,omitempty"`
	ProcessedKeys       int    `json:"processed_keys"`
	TotalForwarded      int64  `json:"total_forwarded"`
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
