package httpapi

import (
	"net/http"
	"strconv"

	"alertbridge/internal/store"
)

type SignalsHandler struct {
	Journal DeliveryLister
}

// List serves recent deliveries, newest first. ?limit= defaults to 50, max 500.
func (h SignalsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	if h.Journal == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"enabled": false, "deliveries": []store.Delivery{}, "counts": map[string]int64{}})
		return
	}

	rows, err := h.Journal.ListDeliveries(r.Context(), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "journal_error", err.Error())
		return
	}
	counts, err := h.Journal.Counts(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "journal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"enabled": true, "deliveries": rows, "counts": counts})
}
