package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ha-desktop/agent/internal/pkg/model"
)

// Register walks the full pairing workflow: validate configuration, probe
// reachability, register the device identity, declare every sensor and push
// the initial snapshot. The webhook id is persisted the moment the hub
// issues it, before sensor declaration, so a later failure does not force a
// redundant re-registration. Callers must not retry automatically.
func (a *Agent) Register(ctx context.Context) (string, error) {
	st := a.Settings()
	if st.ServerURL == "" || st.AccessToken == "" {
		a.logger.Error("registration attempted with incomplete configuration")
		return "", ErrConfigIncomplete
	}

	if err := a.client.CheckReachable(ctx); err != nil {
		a.logger.Error("hub not reachable", zap.Error(err))
		return "", fmt.Errorf("cannot reach the desktop app API: %w", err)
	}

	info := a.deviceInfo(ctx, st.DeviceID)
	webhookID, err := a.client.RegisterDevice(ctx, info)
	if err != nil {
		a.logger.Error("device registration failed", zap.Error(err))
		return "", err
	}

	if err := a.saveWebhookID(webhookID); err != nil {
		return "", err
	}
	a.client.SetWebhookID(webhookID)

	// The hub's platform setup for a new device is asynchronous; sensor
	// declarations sent too early are silently dropped.
	a.logger.Info("waiting for hub platform setup", zap.Duration("delay", a.settleDelay))
	time.Sleep(a.settleDelay)

	all := a.collector.CollectAll(ctx)
	if err := a.client.RegisterSensors(ctx, all); err != nil {
		a.logger.Error("sensor declaration failed", zap.Error(err))
		return "", fmt.Errorf("sensor declaration failed: %w", err)
	}
	if err := a.client.UpdateSensors(ctx, all); err != nil {
		a.logger.Error("initial sensor update failed", zap.Error(err))
		return "", fmt.Errorf("initial sensor update failed: %w", err)
	}

	a.setRegistered(true)
	a.logger.Info("device registered", zap.String("webhook_id", webhookID))
	return webhookID, nil
}

func (a *Agent) saveWebhookID(webhookID string) error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	a.settings.WebhookID = webhookID
	if err := a.store.Save(a.copySettingsLocked()); err != nil {
		a.logger.Error("failed to persist webhook id", zap.Error(err))
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (a *Agent) deviceInfo(ctx context.Context, deviceID string) model.DeviceInfo {
	info := model.DeviceInfo{
		DeviceID:   deviceID,
		DeviceName: "desktop",
		AppVersion: a.appVersion,
	}
	reading, err := a.collector.HostInfo(ctx)
	if err != nil {
		a.logger.Warn("host identity unavailable, registering with defaults", zap.Error(err))
		return info
	}
	if reading.Hostname != "" {
		info.DeviceName = reading.Hostname
	}
	info.Manufacturer = reading.BoardVendor
	info.Model = reading.BoardModel
	info.OSName = reading.OSName
	info.OSVersion = reading.OSVersion
	return info
}
