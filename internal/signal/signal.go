package signal

import (
	"encoding/json"
	"time"
)

// Actions understood by the trading bot.
const (
	ActionBuy   = "BUY"
	ActionSell  = "SELL"
	ActionClose = "CLOSE"
)

const (
	StrengthStrong = "STRONG"
	StrengthMedium = "MEDIUM"
	StrengthWeak   = "WEAK"
)

const (
	ConditionOversold   = "oversold"
	ConditionOverbought = "overbought"
)

// SourceEmail is the only source this bridge produces.
const SourceEmail = "email"

// TimestampLayout is UTC with a literal Z, e.g. 2024-05-01T13:45:00Z.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Indicators carries oscillator readings found in the alert text.
type Indicators struct {
	RSI       *float64 `json:"rsi,omitempty"`
	Stoch     *float64 `json:"stoch,omitempty"`
	Condition string   `json:"condition,omitempty"`
}

func (i *Indicators) Empty() bool {
	return i == nil || (i.RSI == nil && i.Stoch == nil && i.Condition == "")
}

// Signal is the JSON body POSTed to the webhook.
type Signal struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Action      string      `json:"action"`
	Price       float64     `json:"price"`
	Strategy    string      `json:"strategy"`
	Timeframe   string      `json:"timeframe"`
	Strength    string      `json:"strength"`
	Confidence  float64     `json:"confidence"`
	Timestamp   string      `json:"timestamp"`
	Source      string      `json:"source"`
	Subject     string      `json:"subject"`
	BodyPreview string      `json:"body_preview"`
	Indicators  *Indicators `json:"indicators,omitempty"`
	Secret      string      `json:"secret,omitempty"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Encode marshals the signal, dropping an empty indicators block.
func (s Signal) Encode() ([]byte, error) {
	if s.Indicators.Empty() {
		s.Indicators = nil
	}
	return json.Marshal(s)
}

// Redacted is a copy without the shared secret, for logs and the Kafka mirror.
func (s Signal) Redacted() Signal {
	s.Secret = ""
	return s
}
