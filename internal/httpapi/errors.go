package httpapi

import (
	"encoding/json"
	"net/http"

	"alertbridge/internal/config"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// ValidationResponse is the body of /config/validate and of a rejected PUT /config.
type ValidationResponse struct {
	OK        bool     `json:"ok"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
	RequestID string   `json:"request_id,omitempty"`
}

func WriteValidation(w http.ResponseWriter, r *http.Request, status int, vr config.Validation) {
	resp := ValidationResponse{
		OK:        vr.OK(),
		Errors:    vr.Errors,
		Warnings:  vr.Warnings,
		RequestID: RequestIDFrom(r.Context()),
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	WriteJSON(w, status, resp)
}
