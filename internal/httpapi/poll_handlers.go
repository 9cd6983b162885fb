package httpapi

import (
	"net/http"

	"alertbridge/internal/bridge"
	"alertbridge/internal/observability"
)

type PollHandler struct {
	Bridge  Poller
	Metrics *observability.InMemoryMetrics
}

type statusResponse struct {
	Bridge  bridge.Status           `json:"bridge"`
	Metrics *observability.Snapshot `json:"metrics,omitempty"`
}

func (h PollHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Bridge: h.Bridge.Status()}
	if h.Metrics != nil {
		snap := h.Metrics.Snapshot()
		resp.Metrics = &snap
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Run queues an immediate cycle; the loop picks it up between cycles.
func (h PollHandler) Run(w http.ResponseWriter, r *http.Request) {
	queued := h.Bridge.Trigger()
	msg := "poll queued"
	if !queued {
		msg = "poll already pending"
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"queued":  queued,
		"running": h.Bridge.Status().Running,
		"msg":     msg,
	})
}
