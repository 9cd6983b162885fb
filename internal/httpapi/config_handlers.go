package httpapi

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"alertbridge/internal/config"
	"alertbridge/internal/events"
)

const redacted = "***"

type ConfigHandler struct {
	UserCfgPath string
	Hub         *events.Hub
	current     func() config.Config
}

// Get serves the running config with secrets redacted.
func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.current().Redacted())
}

// Put validates and saves a new config file. The running loop keeps its
// config until restart.
func (h ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	var incoming config.Config
	if err := decodeJSON(w, r, &incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}
	config.ApplyDefaults(&incoming)

	// The running config carries the env overlay; only what the file holds may
	// be written back. A redacted value echoed from Get keeps the file's secret.
	file, err := config.LoadFile(h.UserCfgPath)
	if errors.Is(err, os.ErrNotExist) {
		file = config.Default()
	} else if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "config_read_failed", err.Error())
		return
	}
	if incoming.Email.AppPassword == redacted {
		incoming.Email.AppPassword = file.Email.AppPassword
	}
	if incoming.Webhook.Secret == redacted {
		incoming.Webhook.Secret = file.Webhook.Secret
	}
	config.StripEnv(&incoming, file)

	normalized, vr := config.NormalizeAndValidate(incoming)
	if !vr.OK() {
		WriteValidation(w, r, http.StatusBadRequest, vr)
		return
	}
	if err := config.SaveAtomic(h.UserCfgPath, normalized); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}

	h.Hub.Publish(events.TypeConfigSaved, map[string]string{"path": h.UserCfgPath})
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"restart_required": true,
		"warnings":         vr.Warnings,
	})
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.UserCfgPath)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.current())
	WriteValidation(w, r, http.StatusOK, vr)
}
