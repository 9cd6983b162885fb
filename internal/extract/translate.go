package extract

import (
	"errors"
	"strings"
	"time"

	"alertbridge/internal/signal"

	"github.com/google/uuid"
)

const previewRunes = 200

var ErrEmptyAlert = errors.New("alert has neither subject nor body")

// Alert is the text of one inbound alert email.
type Alert struct {
	Subject string
	Body    string
}

// Translator builds signals; zero fields fall back to defaults.
type Translator struct {
	Strategy   string
	Timeframe  string
	Thresholds Thresholds
	Secret     string

	Now   func() time.Time
	NewID func() string
}

func (t Translator) Translate(a Alert) (signal.Signal, error) {
	subject := strings.TrimSpace(a.Subject)
	body := strings.TrimSpace(a.Body)
	if subject == "" && body == "" {
		return signal.Signal{}, ErrEmptyAlert
	}

	th := t.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	newID := uuid.NewString
	if t.NewID != nil {
		newID = t.NewID
	}
	strategy := t.Strategy
	if strategy == "" {
		strategy = "Email_Alert"
	}
	timeframe := t.Timeframe
	if timeframe == "" {
		timeframe = "1h"
	}

	ind := Indicators(subject, body, th)
	confidence := Confidence(body)

	return signal.Signal{
		ID:          newID(),
		Symbol:      Symbol(subject, body),
		Action:      Action(subject, body, ind),
		Price:       Price(body),
		Strategy:    strategy,
		Timeframe:   Timeframe(subject, body, timeframe),
		Strength:    Strength(confidence),
		Confidence:  confidence,
		Timestamp:   signal.FormatTimestamp(now()),
		Source:      signal.SourceEmail,
		Subject:     subject,
		BodyPreview: Preview(body, previewRunes),
		Indicators:  ind,
		Secret:      t.Secret,
	}, nil
}
