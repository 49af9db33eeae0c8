package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const defaultUpdateIntervalSeconds = 60

// Settings is everything the agent persists between runs.
type Settings struct {
	ServerURL      string          `json:"server_url"`
	AccessToken    string          `json:"access_token"`
	WebhookID      string          `json:"webhook_id,omitempty"`
	DeviceID       string          `json:"device_id"`
	UpdateInterval uint64          `json:"update_interval"` // seconds
	Language       string          `json:"language"`
	EnabledSensors map[string]bool `json:"enabled_sensors"`
	Autostart      bool            `json:"autostart"`
}

// Default returns first-run settings with a freshly generated device id.
func Default() Settings {
	return Settings{
		DeviceID:       uuid.NewString(),
		UpdateInterval: defaultUpdateIntervalSeconds,
		Language:       "en",
		EnabledSensors: map[string]bool{},
	}
}

// Store loads and saves persisted settings.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// FileStore keeps settings in a single JSON document on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the settings file, filling defaults for anything missing. On
// first run it persists the generated device id immediately so the identity
// stays stable across restarts.
func (f *FileStore) Load() (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		s := Default()
		if err := f.write(s); err != nil {
			return Settings{}, err
		}
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	s := Settings{}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	changed := false
	if s.DeviceID == "" {
		s.DeviceID = uuid.NewString()
		changed = true
	}
	if s.UpdateInterval == 0 {
		s.UpdateInterval = defaultUpdateIntervalSeconds
	}
	if s.Language == "" {
		s.Language = "en"
	}
	if s.EnabledSensors == nil {
		s.EnabledSensors = map[string]bool{}
	}
	if changed {
		if err := f.write(s); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

func (f *FileStore) Save(s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(s)
}

func (f *FileStore) write(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, f.path)
}
