package api

import (
	"encoding/json"
	"net/http"

	"github.com/nibog-labs/notifyd/internal/config"
)

// settingsResponse wraps the masked settings with the env-locked field names
// so the admin UI can disable those inputs.
type settingsResponse struct {
	Settings config.Settings   `json:"settings"`
	Locked   map[string]string `json:"locked,omitempty"`
}

// handleGetSettings returns the current notification settings.
// The API token is masked before returning.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{
		Settings: s.settingsMgr.Masked(),
		Locked:   s.settingsMgr.Locked(),
	})
}

// handleUpdateSettings persists new notification settings. If the submitted
// token is the mask sentinel ("***"), the existing token is kept.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var incoming config.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	if err := s.settingsMgr.Update(incoming); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Settings: s.settingsMgr.Masked(),
		Locked:   s.settingsMgr.Locked(),
	})
}
