package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alertbridge/internal/signal"

	"github.com/pkg/errors"
)

const (
	DefaultTimeout = 10 * time.Second
	userAgent      = "alertbridge/1"
	maxErrorBody   = 512
)

// ErrUnexpectedStatus is matched by every *StatusError.
var ErrUnexpectedStatus = errors.New("webhook returned unexpected status")

// StatusError is returned when the webhook answers anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.Code)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// StatusCode digs the HTTP code out of err, 0 when there is none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Webhook POSTs each signal as JSON to URL. Only HTTP 200 counts as delivered.
type Webhook struct {
	URL     string
	client  *http.Client
	limiter *hostLimiter
}

// NewWebhook builds a webhook sink with a fixed request timeout and a
// per-host request rate (<= 0 means unlimited).
func NewWebhook(url string, timeout time.Duration, ratePerSec float64) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		URL:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: newHostLimiter(ratePerSec, 1),
	}
}

// WithClient swaps the HTTP client; the caller owns its timeout.
func (wh *Webhook) WithClient(client *http.Client) *Webhook {
	wh.client = client
	return wh
}

func (wh *Webhook) Name() string { return "webhook" }

func (wh *Webhook) Send(ctx context.Context, sig signal.Signal) error {
	body, err := sig.Encode()
	if err != nil {
		return errors.Wrap(err, "encode signal")
	}
	if err := wh.limiter.WaitURL(ctx, wh.URL); err != nil {
		return errors.Wrap(err, "webhook rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if sig.ID != "" {
		req.Header.Set("X-Signal-ID", sig.ID)
	}

	resp, err := wh.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post webhook %s", wh.URL)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return nil
}
