package events

import (
	"encoding/json"
	"time"
)

// Event types pushed to /events subscribers.
const (
	TypeCycleStarted    = "cycle.started"
	TypeCycleFinished   = "cycle.finished"
	TypeSignalForwarded = "signal.forwarded"
	TypeSignalFailed    = "signal.failed"
	TypeDedupReset      = "dedup.reset"
	TypeConfigSaved     = "config.saved"
)

const Version = 1

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Make builds an envelope; data that fails to marshal is dropped.
func Make(reqID, typ string, data any) Event {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	return Event{
		Type:      typ,
		Version:   Version,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
}

func (e Event) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}
