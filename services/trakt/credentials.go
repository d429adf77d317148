package trakt

import (
	"time"

	"reelsync/config"
)

// Credentials resolves a usable Trakt access token from the stored settings,
// refreshing it when it is close to expiry.
type Credentials struct {
	client        *Client
	configManager *config.Manager
}

// NewCredentials creates a credentials source backed by the settings file.
func NewCredentials(client *Client, configManager *config.Manager) *Credentials {
	return &Credentials{
		client:        client,
		configManager: configManager,
	}
}

// HasValidCredentials reports whether the user is logged in to Trakt and the
// app credentials are configured.
func (c *Credentials) HasValidCredentials() bool {
	settings, err := c.configManager.Load()
	if err != nil {
		return false
	}
	return settings.Trakt.ClientID != "" && settings.Trakt.IsLoggedIn()
}

// SyncEnabled reports whether actions should be sent to Trakt at all.
func (c *Credentials) SyncEnabled() bool {
	settings, err := c.configManager.Load()
	if err != nil {
		return false
	}
	return settings.Trakt.SyncEnabled && settings.Trakt.IsLoggedIn()
}

// AccessToken returns a valid access token, refreshing if needed. Returns an
// empty token without error when the user is not logged in.
func (c *Credentials) AccessToken() (string, error) {
	settings, err := c.configManager.Load()
	if err != nil {
		return "", err
	}

	if !settings.Trakt.IsLoggedIn() {
		return "", nil
	}

	// Keep the client on the credentials currently stored
	c.client.UpdateCredentials(settings.Trakt.ClientID, settings.Trakt.ClientSecret)

	// Refresh when within an hour of expiry
	if settings.Trakt.TokenExpiresSoon(time.Hour) && settings.Trakt.RefreshToken != "" {
		token, err := c.client.RefreshAccessToken(settings.Trakt.RefreshToken)
		if err != nil {
			return "", err
		}

		settings.Trakt.AccessToken = token.AccessToken
		settings.Trakt.RefreshToken = token.RefreshToken
		settings.Trakt.ExpiresAt = token.CreatedAt + int64(token.ExpiresIn)

		if err := c.configManager.Save(settings); err != nil {
			return "", err
		}

		return token.AccessToken, nil
	}

	return settings.Trakt.AccessToken, nil
}
