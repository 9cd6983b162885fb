package httpapi

import (
	"net/http"

	"alertbridge/internal/secrets"
)

// NewMux registers every route on a fresh mux.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{StartedAt: d.StartedAt}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Poll loop
	ph := PollHandler{Bridge: d.Bridge, Metrics: d.Metrics}
	mux.HandleFunc("/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ph.Status,
	}))
	mux.HandleFunc("/poll/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ph.Run,
	}))

	// Journal
	sgh := SignalsHandler{Journal: d.Journal}
	mux.HandleFunc("/signals", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sgh.List,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Config
	ch := ConfigHandler{
		UserCfgPath: d.UserCfgPath,
		Hub:         d.Hub,
		current:     d.config,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (read the live config, not a snapshot)
	sh := SecretsHandler{
		current:          d.config,
		setIMAPPassword:  d.SetIMAPPassword,
		setWebhookSecret: d.SetWebhookSecret,
		delIMAPPassword:  d.DeleteIMAPPassword,
		delWebhookSecret: d.DeleteWebhookSecret,
	}
	if sh.setIMAPPassword == nil {
		sh.setIMAPPassword = secrets.SetIMAPPassword
	}
	if sh.setWebhookSecret == nil {
		sh.setWebhookSecret = secrets.SetWebhookSecret
	}
	if sh.delIMAPPassword == nil {
		sh.delIMAPPassword = secrets.DeleteIMAPPassword
	}
	if sh.delWebhookSecret == nil {
		sh.delWebhookSecret = secrets.DeleteWebhookSecret
	}
	mux.HandleFunc("/api/secrets/imap", methodMux(map[string]http.HandlerFunc{
		http.MethodPost:   sh.SetIMAPPassword,
		http.MethodDelete: sh.DeleteIMAPPassword,
	}))
	mux.HandleFunc("/api/secrets/webhook", methodMux(map[string]http.HandlerFunc{
		http.MethodPost:   sh.SetWebhookSecret,
		http.MethodDelete: sh.DeleteWebhookSecret,
	}))

	return mux
}

// Handler is NewMux wrapped in the standard middleware stack.
func Handler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover, AccessLog, LocalOnly, JSONOnly)
}
