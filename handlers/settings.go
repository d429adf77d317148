package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"reelsync/config"
	"reelsync/services/cloud"
	"reelsync/services/metadata"
	"reelsync/services/trakt"
)

type SettingsHandler struct {
	Manager         *config.Manager
	MetadataService *metadata.Service
	TraktClient     *trakt.Client
	CloudClient     *cloud.Client
}

func NewSettingsHandler(m *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: m}
}

// SetMetadataService sets the metadata service for hot reloading API keys
func (h *SettingsHandler) SetMetadataService(ms *metadata.Service) {
	h.MetadataService = ms
}

// SetTraktClient sets the Trakt client for hot reloading app credentials
func (h *SettingsHandler) SetTraktClient(c *trakt.Client) {
	h.TraktClient = c
}

// SetCloudClient sets the cloud client for hot reloading the endpoint
func (h *SettingsHandler) SetCloudClient(c *cloud.Client) {
	h.CloudClient = c
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Manager.Save(s); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Hot reload services that cache configuration at startup
	h.reloadServices(s)

	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) reloadServices(s config.Settings) {
	if h.MetadataService != nil {
		h.MetadataService.UpdateAPIKey(s.Metadata.TMDBAPIKey, s.Metadata.Language)
		log.Printf("[settings] reloaded metadata service API key")
	}
	if h.TraktClient != nil {
		h.TraktClient.UpdateCredentials(s.Trakt.ClientID, s.Trakt.ClientSecret)
		log.Printf("[settings] reloaded trakt client credentials")
	}
	if h.CloudClient != nil {
		h.CloudClient.UpdateEndpoint(s.Cloud.BaseURL, s.Cloud.APIKey)
		log.Printf("[settings] reloaded cloud endpoint")
	}
}
