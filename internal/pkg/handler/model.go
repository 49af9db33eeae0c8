package handler

// SettingsResponse mirrors the persisted settings plus live registration
// status for the configuration UI.
type SettingsResponse struct {
	ServerURL      string          `json:"server_url"`
	AccessToken    string          `json:"access_token"`
	WebhookID      string          `json:"webhook_id,omitempty"`
	DeviceID       string          `json:"device_id"`
	UpdateInterval uint64          `json:"update_interval"`
	Language       string          `json:"language"`
	EnabledSensors map[string]bool `json:"enabled_sensors"`
	Autostart      bool            `json:"autostart"`
	IsRegistered   bool            `json:"is_registered"`
}

type SaveSettingsRequest struct {
	ServerURL      string `json:"server_url"`
	AccessToken    string `json:"access_token"`
	UpdateInterval uint64 `json:"update_interval"`
	Language       string `json:"language"`
	Autostart      bool   `json:"autostart"`
}

type ToggleSensorRequest struct {
	Enabled bool `json:"enabled"`
}

type RegisterResponse struct {
	WebhookID string `json:"webhook_id"`
}

type PublicIPResponse struct {
	IP string `json:"ip"`
}
