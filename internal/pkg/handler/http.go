package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ha-desktop/agent/internal/pkg/agent"
	"github.com/ha-desktop/agent/internal/pkg/hass"
	"github.com/ha-desktop/agent/internal/pkg/model"
	"github.com/ha-desktop/agent/internal/pkg/settings"
)

type agentService interface {
	Settings() settings.Settings
	Registered() bool
	SaveSettings(update agent.SettingsUpdate) error
	Register(ctx context.Context) (string, error)
	SensorList() []model.SensorListItem
	ToggleSensor(sensorID string, enabled bool) error
	UpdateNow(ctx context.Context) error
}

// GetSettings returns the current settings and registration status.
func GetSettings(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := svc.Settings()
		writeJSON(w, http.StatusOK, SettingsResponse{
			ServerURL:      st.ServerURL,
			AccessToken:    st.AccessToken,
			WebhookID:      st.WebhookID,
			DeviceID:       st.DeviceID,
			UpdateInterval: st.UpdateInterval,
			Language:       st.Language,
			EnabledSensors: st.EnabledSensors,
			Autostart:      st.Autostart,
			IsRegistered:   svc.Registered(),
		})
	}
}

// SaveSettings persists the submitted settings; a changed server URL or
// token clears registration as a side effect.
func SaveSettings(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := unmarshalPayload[SaveSettingsRequest](r)
		if err != nil {
			handleError(w, http.StatusBadRequest, err)
			return
		}
		if err := svc.SaveSettings(agent.SettingsUpdate{
			ServerURL:      req.ServerURL,
			AccessToken:    req.AccessToken,
			UpdateInterval: req.UpdateInterval,
			Language:       req.Language,
			Autostart:      req.Autostart,
		}); err != nil {
			handleError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RegisterDevice runs the full registration workflow and returns the
// issued webhook id. Workflow errors pass through unmodified for display.
func RegisterDevice(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		webhookID, err := svc.Register(r.Context())
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, agent.ErrConfigIncomplete) {
				status = http.StatusBadRequest
			}
			handleError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, RegisterResponse{WebhookID: webhookID})
	}
}

// SensorList reports every catalog entry, disabled ones included.
func SensorList(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.SensorList())
	}
}

// ToggleSensor flips one sensor's enablement.
func ToggleSensor(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sensorID := r.PathValue("id")
		if sensorID == "" {
			handleError(w, http.StatusBadRequest, errors.New("missing sensor id"))
			return
		}
		req, err := unmarshalPayload[ToggleSensorRequest](r)
		if err != nil {
			handleError(w, http.StatusBadRequest, err)
			return
		}
		if err := svc.ToggleSensor(sensorID, req.Enabled); err != nil {
			handleError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UpdateNow forces an immediate collect-and-push cycle.
func UpdateNow(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.UpdateNow(r.Context()); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, hass.ErrNotRegistered) {
				status = http.StatusConflict
			}
			handleError(w, status, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PublicIP reports the machine's outbound IP, for reverse-proxy allowlists.
func PublicIP() http.HandlerFunc {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://api.ipify.org", nil)
		if err != nil {
			handleError(w, http.StatusInternalServerError, err)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			handleError(w, http.StatusBadGateway, err)
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			handleError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, PublicIPResponse{IP: strings.TrimSpace(string(body))})
	}
}

func unmarshalPayload[T any](r *http.Request) (T, error) {
	var payload T
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return payload, err
	}
	err = json.Unmarshal(data, &payload)
	return payload, err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("failed to write response", zap.Error(err))
	}
}

func handleError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
