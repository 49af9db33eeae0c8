package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ha-desktop/agent/internal/pkg/hass"
	"github.com/ha-desktop/agent/internal/pkg/model"
	"github.com/ha-desktop/agent/internal/pkg/sensor"
	"github.com/ha-desktop/agent/internal/pkg/settings"
)

// ErrConfigIncomplete is returned before any network call when registration
// is attempted without a server URL or access token.
var ErrConfigIncomplete = errors.New("server URL and access token are not configured")

const defaultSettleDelay = 3 * time.Second

// Agent is the shared device state: the persisted settings, the push
// client's credentials and the registered flag, each behind its own lock so
// a settings write never blocks an unrelated read of the registered flag.
type Agent struct {
	store      settings.Store
	client     *hass.Client
	collector  *sensor.Collector
	appVersion string

	settingsMu sync.Mutex
	settings   settings.Settings

	registeredMu sync.Mutex
	registered   bool

	settleDelay time.Duration
	logger      *zap.Logger
}

type Option func(*Agent)

// WithSettleDelay overrides the post-registration settling wait, for tests.
func WithSettleDelay(d time.Duration) Option {
	return func(a *Agent) {
		a.settleDelay = d
	}
}

func New(st settings.Settings, store settings.Store, client *hass.Client, collector *sensor.Collector, appVersion string, opts ...Option) *Agent {
	a := &Agent{
		store:       store,
		client:      client,
		collector:   collector,
		appVersion:  appVersion,
		settings:    st,
		registered:  st.WebhookID != "",
		settleDelay: defaultSettleDelay,
		logger:      zap.L(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registered is the single source of truth for registration status; a
// stored webhook id without the flag is advisory only.
func (a *Agent) Registered() bool {
	a.registeredMu.Lock()
	defer a.registeredMu.Unlock()
	return a.registered
}

func (a *Agent) setRegistered(v bool) {
	a.registeredMu.Lock()
	a.registered = v
	a.registeredMu.Unlock()
}

// Settings returns a copy of the current persisted settings.
func (a *Agent) Settings() settings.Settings {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	return a.copySettingsLocked()
}

func (a *Agent) copySettingsLocked() settings.Settings {
	st := a.settings
	st.EnabledSensors = make(map[string]bool, len(a.settings.EnabledSensors))
	for id, on := range a.settings.EnabledSensors {
		st.EnabledSensors[id] = on
	}
	return st
}

// SettingsUpdate carries the user-editable settings fields.
type SettingsUpdate struct {
	ServerURL      string
	AccessToken    string
	UpdateInterval uint64
	Language       string
	Autostart      bool
}

// SaveSettings persists the update. When the server URL or token changed
// the stored webhook id is cleared and the registered flag demoted before
// returning, so in-flight pushes are naturally skipped until the caller
// re-registers.
func (a *Agent) SaveSettings(update SettingsUpdate) error {
	serverURL := hass.NormalizeServerURL(update.ServerURL)
	token := strings.TrimSpace(update.AccessToken)

	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()

	credsChanged := a.settings.ServerURL != serverURL || a.settings.AccessToken != token

	a.settings.ServerURL = serverURL
	a.settings.AccessToken = token
	if update.UpdateInterval > 0 {
		a.settings.UpdateInterval = update.UpdateInterval
	}
	if update.Language != "" {
		a.settings.Language = update.Language
	}
	a.settings.Autostart = update.Autostart

	if err := a.store.Save(a.copySettingsLocked()); err != nil {
		a.logger.Error("failed to save settings", zap.Error(err))
		return err
	}

	if credsChanged {
		a.client.UpdateConfig(serverURL, token)
		if a.settings.WebhookID != "" {
			a.settings.WebhookID = ""
			a.setRegistered(false)
			if err := a.store.Save(a.copySettingsLocked()); err != nil {
				a.logger.Error("failed to save settings", zap.Error(err))
				return err
			}
			a.logger.Info("server config changed, registration cleared")
		}
	}
	return nil
}

// SensorList reports the full catalog with current enablement.
func (a *Agent) SensorList() []model.SensorListItem {
	return a.collector.SensorList()
}

// ToggleSensor persists one enablement change and swaps the collector's map.
func (a *Agent) ToggleSensor(sensorID string, enabled bool) error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()

	a.settings.EnabledSensors[sensorID] = enabled
	st := a.copySettingsLocked()
	if err := a.store.Save(st); err != nil {
		a.logger.Error("failed to save settings", zap.Error(err))
		return err
	}
	a.collector.SetEnabledSensors(st.EnabledSensors)
	return nil
}

// UpdateNow collects dynamic sensors and pushes them immediately. Errors go
// back to the caller unmodified for display.
func (a *Agent) UpdateNow(ctx context.Context) error {
	if !a.Registered() {
		return hass.ErrNotRegistered
	}
	values := a.collector.CollectDynamic(ctx)
	if err := a.client.UpdateSensors(ctx, values); err != nil {
		a.logger.Error("manual sensor update failed", zap.Error(err))
		return err
	}
	return nil
}

// CheckWebhook is the periodic liveness probe. Only a definitive
// invalidation (410 gone or 404 removed) demotes the registered flag;
// transient connectivity failures leave it alone.
func (a *Agent) CheckWebhook(ctx context.Context) {
	if !a.Registered() {
		return
	}
	err := a.client.ProbeWebhook(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, hass.ErrWebhookExpired) || errors.Is(err, hass.ErrIntegrationRemoved) {
		a.logger.Warn("webhook no longer valid, re-registration required", zap.Error(err))
		a.setRegistered(false)
		return
	}
	a.logger.Debug("webhook probe inconclusive", zap.Error(err))
}

func (a *Agent) updateInterval() time.Duration {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	return time.Duration(a.settings.UpdateInterval) * time.Second
}
