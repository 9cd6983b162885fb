package httpapi

import (
	"net/http"
	"strings"

	"alertbridge/internal/config"
)

type SecretsHandler struct {
	current          func() config.Config
	setIMAPPassword  func(cfg config.Config, password string) error
	setWebhookSecret func(cfg config.Config, secret string) error
	delIMAPPassword  func(cfg config.Config) error
	delWebhookSecret func(cfg config.Config) error
}

type setIMAPPasswordReq struct {
	Password string `json:"password"`
}

type setWebhookSecretReq struct {
	Secret string `json:"secret"`
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_password", "password is required")
		return
	}

	cfg := h.current()
	if cfg.Email.Username == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_username", "email.username must be configured first")
		return
	}
	if err := h.setIMAPPassword(cfg, req.Password); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "keychain_error", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) SetWebhookSecret(w http.ResponseWriter, r *http.Request) {
	var req setWebhookSecretReq
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Secret) == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_secret", "secret is required")
		return
	}
	if err := h.setWebhookSecret(h.current(), req.Secret); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "keychain_error", "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteIMAPPassword removes the keychain entry. A missing entry is not an error.
func (h SecretsHandler) DeleteIMAPPassword(w http.ResponseWriter, r *http.Request) {
	if err := h.delIMAPPassword(h.current()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "keychain_error", "failed to delete password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteWebhookSecret(w http.ResponseWriter, r *http.Request) {
	if err := h.delWebhookSecret(h.current()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "keychain_error", "failed to delete secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
