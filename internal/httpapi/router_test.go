package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"alertbridge/internal/bridge"
	"alertbridge/internal/config"
	"alertbridge/internal/events"
	"alertbridge/internal/observability"
	"alertbridge/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoller struct {
	status   bridge.Status
	triggers atomic.Int32
}

func (p *fakePoller) Status() bridge.Status { return p.status }

func (p *fakePoller) Trigger() bool {
	return p.triggers.Add(1) == 1
}

type fakeJournal struct {
	rows      []store.Delivery
	counts    map[string]int64
	err       error
	lastLimit int
}

func (j *fakeJournal) ListDeliveries(_ context.Context, limit int) ([]store.Delivery, error) {
	j.lastLimit = limit
	return j.rows, j.err
}

func (j *fakeJournal) Counts(context.Context) (map[string]int64, error) {
	return j.counts, j.err
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Email.Username = "trader@gmail.com"
	cfg.Email.AppPassword = "app-pass"
	cfg.Webhook.URL = "http://localhost:3000/webhook/tradingview"
	cfg.Webhook.Secret = "s3cret"
	return cfg
}

type testAPI struct {
	srv     *httptest.Server
	poller  *fakePoller
	journal *fakeJournal
	hub     *events.Hub
	cfgPath string
	imapPw  map[string]string
	secret  map[string]string
}

func newTestAPI(t *testing.T, mutate ...func(*Deps)) *testAPI {
	t.Helper()
	var cfgVal atomic.Value
	cfgVal.Store(testConfig())

	metrics := observability.NewInMemoryMetrics()
	metrics.IncForwarded()

	api := &testAPI{
		poller:  &fakePoller{status: bridge.Status{LastOkAt: "2024-05-01T14:00:00Z", ProcessedKeys: 3}},
		journal: &fakeJournal{},
		hub:     events.NewHub(),
		cfgPath: filepath.Join(t.TempDir(), "config.yml"),
		imapPw:  map[string]string{},
		secret:  map[string]string{},
	}
	d := Deps{
		CfgVal:      &cfgVal,
		UserCfgPath: api.cfgPath,
		Bridge:      api.poller,
		Journal:     api.journal,
		Hub:         api.hub,
		Metrics:     metrics,
		StartedAt:   time.Now().Add(-time.Minute),
		SetIMAPPassword: func(cfg config.Config, pw string) error {
			api.imapPw[cfg.Email.Username] = pw
			return nil
		},
		SetWebhookSecret: func(cfg config.Config, s string) error {
			api.secret[cfg.Webhook.URL] = s
			return nil
		},
		DeleteIMAPPassword: func(cfg config.Config) error {
			delete(api.imapPw, cfg.Email.Username)
			return nil
		},
		DeleteWebhookSecret: func(cfg config.Config) error {
			delete(api.secret, cfg.Webhook.URL)
			return nil
		},
	}
	for _, fn := range mutate {
		fn(&d)
	}
	api.srv = httptest.NewServer(Handler(d))
	t.Cleanup(api.srv.Close)
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, true, got["ok"])
	assert.GreaterOrEqual(t, got["uptime_s"], float64(59))
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)
	req, _ := http.NewRequest(http.MethodGet, api.srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(t, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	var e APIError
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "method_not_allowed", e.Error.Code)
	assert.NotEmpty(t, e.Error.RequestID)
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got statusResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "2024-05-01T14:00:00Z", got.Bridge.LastOkAt)
	assert.Equal(t, 3, got.Bridge.ProcessedKeys)
	require.NotNil(t, got.Metrics)
	assert.Equal(t, int64(1), got.Metrics.Forwarded)
}

func TestPollRun(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/poll/run", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, string(body), `"queued":true`)

	_, body = api.do(t, http.MethodPost, "/poll/run", "")
	assert.Contains(t, string(body), `"queued":false`)
	assert.Equal(t, int32(2), api.poller.triggers.Load())
}

func TestSignals(t *testing.T) {
	api := newTestAPI(t)
	api.journal.rows = []store.Delivery{{ID: 1, SignalID: "sig", Symbol: "BTCUSDT", Status: store.StatusSent}}
	api.journal.counts = map[string]int64{store.StatusSent: 1}

	resp, body := api.do(t, http.MethodGet, "/signals?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, api.journal.lastLimit)

	var got struct {
		Enabled    bool             `json:"enabled"`
		Deliveries []store.Delivery `json:"deliveries"`
		Counts     map[string]int64 `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Enabled)
	assert.Equal(t, int64(1), got.Counts[store.StatusSent])
	require.Len(t, got.Deliveries, 1)
	assert.Equal(t, "BTCUSDT", got.Deliveries[0].Symbol)

	resp, _ = api.do(t, http.MethodGet, "/signals", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, store.DefaultListLimit, api.journal.lastLimit)

	resp, _ = api.do(t, http.MethodGet, "/signals?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	api.journal.err = errors.New("disk I/O error")
	resp, _ = api.do(t, http.MethodGet, "/signals", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSignalsJournalDisabled(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.Journal = nil })
	resp, body := api.do(t, http.MethodGet, "/signals", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"enabled":false,"deliveries":[],"counts":{}}`, string(body))
}

func TestConfigGetIsRedacted(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(t, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "app-pass")
	assert.NotContains(t, string(body), "s3cret")

	var got config.Config
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "***", got.Email.AppPassword)
	assert.Equal(t, "trader@gmail.com", got.Email.Username)
}

func TestConfigValidate(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(t, http.MethodGet, "/config/validate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok":true`)
}

func TestConfigPut(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) {
		require.NoError(t, config.SaveAtomic(d.UserCfgPath, testConfig()))
	})
	ch, cancel := api.hub.Subscribe()
	defer cancel()

	cfg := testConfig().Redacted()
	cfg.Polling.IntervalSeconds = 120
	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	resp, body := api.do(t, http.MethodPut, "/config", string(b))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"restart_required":true`)

	saved, err := config.Load(api.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 120, saved.Polling.IntervalSeconds)
	assert.Equal(t, "app-pass", saved.Email.AppPassword)
	assert.Equal(t, "s3cret", saved.Webhook.Secret)

	select {
	case msg := <-ch:
		assert.Contains(t, msg, events.TypeConfigSaved)
	case <-time.After(time.Second):
		t.Fatal("no config.saved event")
	}
}

func TestConfigPutKeepsEnvValuesOutOfFile(t *testing.T) {
	t.Setenv(config.EnvIMAPPassword, "env-only-pass")
	t.Setenv(config.EnvWebhookSecret, "env-only-secret")
	t.Setenv(config.EnvWebhookURL, "http://localhost:4000/env-hook")

	api := newTestAPI(t, func(d *Deps) {
		file := testConfig()
		file.Email.AppPassword = ""
		file.Webhook.Secret = ""
		require.NoError(t, config.SaveAtomic(d.UserCfgPath, file))

		running, err := config.Load(d.UserCfgPath)
		require.NoError(t, err)
		require.Equal(t, "env-only-pass", running.Email.AppPassword)
		var v atomic.Value
		v.Store(running)
		d.CfgVal = &v
	})

	resp, body := api.do(t, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "env-hook")

	resp, body = api.do(t, http.MethodPut, "/config", string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	raw, err := os.ReadFile(api.cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "env-only-pass")
	assert.NotContains(t, string(raw), "env-only-secret")
	assert.NotContains(t, string(raw), "env-hook")

	saved, err := config.LoadFile(api.cfgPath)
	require.NoError(t, err)
	assert.Empty(t, saved.Email.AppPassword)
	assert.Empty(t, saved.Webhook.Secret)
	assert.Equal(t, "http://localhost:3000/webhook/tradingview", saved.Webhook.URL)
}

func TestConfigPutRejectsInvalid(t *testing.T) {
	api := newTestAPI(t)
	cfg := testConfig()
	cfg.Webhook.URL = "not a url"
	b, _ := json.Marshal(cfg)

	resp, body := api.do(t, http.MethodPut, "/config", string(b))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var vr ValidationResponse
	require.NoError(t, json.Unmarshal(body, &vr))
	assert.False(t, vr.OK)
	assert.Contains(t, strings.Join(vr.Errors, "\n"), "webhook.url")
	assert.NotEmpty(t, vr.RequestID)
	_, err := os.Stat(api.cfgPath)
	assert.True(t, os.IsNotExist(err))

	resp, _ = api.do(t, http.MethodPut, "/config", `{"nope": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSecrets(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodPost, "/api/secrets/imap", `{"password":"new-pass"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "new-pass", api.imapPw["trader@gmail.com"])

	resp, _ = api.do(t, http.MethodPost, "/api/secrets/imap", `{"password":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/secrets/imap", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/secrets/webhook", `{"secret":"shh"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "shh", api.secret["http://localhost:3000/webhook/tradingview"])

	resp, _ = api.do(t, http.MethodPost, "/api/secrets/webhook", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, "/api/secrets/imap", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotContains(t, api.imapPw, "trader@gmail.com")

	resp, _ = api.do(t, http.MethodDelete, "/api/secrets/webhook", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, api.secret)
}

func TestWritesRequireJSONContentType(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/secrets/imap", "/api/secrets/webhook", "/poll/run"} {
		req, err := http.NewRequest(http.MethodPost, api.srv.URL+path, strings.NewReader(`{"password":"x","secret":"x"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "text/plain")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode, path)
	}
	assert.Empty(t, api.imapPw)
	assert.Empty(t, api.secret)
	assert.Equal(t, int32(0), api.poller.triggers.Load())

	req, err := http.NewRequest(http.MethodPost, api.srv.URL+"/api/secrets/webhook", strings.NewReader(`{"secret":"ok"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSecretsKeychainError(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) {
		d.SetIMAPPassword = func(config.Config, string) error { return errors.New("keychain locked") }
	})
	resp, body := api.do(t, http.MethodPost, "/api/secrets/imap", `{"password":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "keychain locked")
}

func TestEventsStream(t *testing.T) {
	api := newTestAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data: ") {
				lines <- strings.TrimPrefix(sc.Text(), "data: ")
			}
		}
		close(lines)
	}()

	first := <-lines
	assert.Contains(t, first, `"type":"ping"`)

	require.Eventually(t, func() bool { return api.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	api.hub.Publish(events.TypeSignalForwarded, map[string]string{"symbol": "ETHUSDT"})

	select {
	case msg := <-lines:
		var e events.Event
		require.NoError(t, json.Unmarshal([]byte(msg), &e))
		assert.Equal(t, events.TypeSignalForwarded, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event not streamed")
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID, Recover)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestLocalOnly(t *testing.T) {
	h := Chain(http.NotFoundHandler(), RequestID, LocalOnly)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, addr := range []string{"127.0.0.1:5555", "[::1]:5555"} {
		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, addr)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
