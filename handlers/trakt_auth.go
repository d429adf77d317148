package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"reelsync/config"
	"reelsync/services/trakt"
)

// TraktAuthHandler drives the Trakt device-code OAuth flow.
type TraktAuthHandler struct {
	Manager *config.Manager
	Client  *trakt.Client
}

func NewTraktAuthHandler(m *config.Manager, c *trakt.Client) *TraktAuthHandler {
	return &TraktAuthHandler{Manager: m, Client: c}
}

// Start begins the device flow and returns the user code to display.
func (h *TraktAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.Trakt.ClientID == "" || s.Trakt.ClientSecret == "" {
		writeError(w, http.StatusBadRequest, "trakt client id and secret must be configured first")
		return
	}
	h.Client.UpdateCredentials(s.Trakt.ClientID, s.Trakt.ClientSecret)

	deviceCode, err := h.Client.GetDeviceCode()
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, deviceCode)
}

// Poll checks whether the user authorized the device code yet, persisting the
// tokens when they arrive.
func (h *TraktAuthHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceCode string `json:"deviceCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DeviceCode == "" {
		writeError(w, http.StatusBadRequest, "deviceCode is required")
		return
	}

	token, err := h.Client.PollForToken(body.DeviceCode)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if token == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"pending": true})
		return
	}

	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Trakt.AccessToken = token.AccessToken
	s.Trakt.RefreshToken = token.RefreshToken
	s.Trakt.ExpiresAt = token.CreatedAt + int64(token.ExpiresIn)
	if err := h.Manager.Save(s); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[trakt] device authorization complete")
	writeJSON(w, http.StatusOK, map[string]bool{"pending": false})
}

// Logout drops the stored tokens.
func (h *TraktAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Trakt.AccessToken = ""
	s.Trakt.RefreshToken = ""
	s.Trakt.ExpiresAt = 0
	s.Trakt.Username = ""
	if err := h.Manager.Save(s); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
