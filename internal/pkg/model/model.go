package model

// SensorValue is one wire-ready sensor reading. Built fresh each collection
// cycle and never mutated afterwards; dropped on transmission failure.
type SensorValue struct {
	UniqueID          string
	Name              string
	State             Value
	Type              SensorType
	DeviceClass       string
	Unit              string
	StateClass        string
	Icon              string
	Attributes        map[string]any
	UpdatesAtInterval bool
}

// SensorListItem describes one catalog entry for the configuration surface,
// present regardless of whether the sensor is currently enabled.
type SensorListItem struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Enabled           bool   `json:"enabled"`
	UpdatesAtInterval bool   `json:"updates_at_interval"`
}

// DeviceInfo is the identity declared to the hub at registration.
type DeviceInfo struct {
	DeviceID     string
	DeviceName   string
	Manufacturer string
	Model        string
	OSName       string
	OSVersion    string
	AppVersion   string
}
