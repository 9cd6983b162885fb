package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"alertbridge/internal/signal"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	mu      sync.Mutex
	headers []http.Header
	bodies  []map[string]interface{}
}

func (r *received) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func testWebserver(t *testing.T, status int) (*httptest.Server, *received) {
	t.Helper()
	rec := &received{}
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		buf, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var body map[string]interface{}
		assert.NoError(t, json.Unmarshal(buf, &body))

		rec.mu.Lock()
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.bodies = append(rec.bodies, body)
		rec.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte("bot says hi"))
	}))
	t.Cleanup(svr.Close)
	return svr, rec
}

func testSignal() signal.Signal {
	return signal.Signal{
		ID:         "sig-1",
		Symbol:     "BTCUSDT",
		Action:     signal.ActionBuy,
		Price:      67250,
		Strategy:   "Email_Alert",
		Timeframe:  "1h",
		Strength:   signal.StrengthMedium,
		Confidence: 0.7,
		Timestamp:  "2024-05-01T13:45:00Z",
		Source:     signal.SourceEmail,
		Subject:    "Alert: BTCUSDT",
		Secret:     "s3cret",
	}
}

func TestWebhookSend_OK(t *testing.T) {
	svr, rec := testWebserver(t, http.StatusOK)

	wh := NewWebhook(svr.URL+"/webhook/tradingview", time.Second, 0)
	require.NoError(t, wh.Send(context.Background(), testSignal()))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, "application/json", rec.headers[0].Get("Content-Type"))
	assert.Equal(t, "sig-1", rec.headers[0].Get("X-Signal-ID"))
	assert.Equal(t, "BTCUSDT", rec.bodies[0]["symbol"])
	assert.Equal(t, "BUY", rec.bodies[0]["action"])
	assert.Equal(t, "s3cret", rec.bodies[0]["secret"])
	assert.NotContains(t, rec.bodies[0], "indicators")
}

func TestWebhookSend_Non200IsFailure(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusAccepted, http.StatusBadRequest, http.StatusInternalServerError} {
		svr, _ := testWebserver(t, status)
		wh := NewWebhook(svr.URL, time.Second, 0)

		err := wh.Send(context.Background(), testSignal())
		require.Error(t, err, "status %d", status)
		assert.True(t, errors.Is(err, ErrUnexpectedStatus))
		assert.Equal(t, status, StatusCode(err))
		assert.Contains(t, err.Error(), "bot says hi")
	}
}

func TestWebhookSend_TransportError(t *testing.T) {
	svr := httptest.NewServer(http.NotFoundHandler())
	url := svr.URL
	svr.Close()

	wh := NewWebhook(url, time.Second, 0)
	err := wh.Send(context.Background(), testSignal())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, 0, StatusCode(err))
}

func TestWebhookSend_Timeout(t *testing.T) {
	block := make(chan struct{})
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer svr.Close()
	defer close(block)

	wh := NewWebhook(svr.URL, 50*time.Millisecond, 0)
	start := time.Now()
	err := wh.Send(context.Background(), testSignal())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWebhookSend_CancelledContext(t *testing.T) {
	svr, rec := testWebserver(t, http.StatusOK)
	wh := NewWebhook(svr.URL, time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, wh.Send(ctx, testSignal()))
	assert.Equal(t, 0, rec.count())
}

func TestHostLimiter(t *testing.T) {
	hl := newHostLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, hl.WaitURL(context.Background(), "http://bot.local/webhook"))
	}

	hl = newHostLimiter(1, 1)
	require.NoError(t, hl.WaitURL(context.Background(), "http://bot.local/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, hl.WaitURL(ctx, "http://bot.local/b"), "second call on the same host must wait")
	assert.NoError(t, hl.WaitURL(context.Background(), "http://other.local/"))
	assert.Same(t, hl.limiterFor("_"), hl.limiterFor("_"))
}
