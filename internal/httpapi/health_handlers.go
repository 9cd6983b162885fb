package httpapi

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	StartedAt time.Time
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"ok": true}
	if !h.StartedAt.IsZero() {
		resp["uptime_s"] = int64(time.Since(h.StartedAt).Seconds())
	}
	WriteJSON(w, http.StatusOK, resp)
}
