package hass

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ha-desktop/agent/internal/pkg/model"
)

const (
	pingPath         = "/api/desktop_app/ping"
	registrationPath = "/api/desktop_app/registrations"
	webhookPath      = "/api/webhook/"

	commandRegisterSensor     = "register_sensor"
	commandUpdateSensorStates = "update_sensor_states"

	requestTimeout = 30 * time.Second
	probeTimeout   = 5 * time.Second
)

// NormalizeServerURL trims whitespace, a trailing slash and a trailing /api
// segment, so "https://ha.local/api/" and "https://ha.local" store the same.
func NormalizeServerURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, "/api")
	return strings.TrimSuffix(s, "/")
}

// Client talks to the hub's two endpoints: the authenticated registration
// API and the webhook the hub issues for high-frequency sensor traffic. The
// webhook id is the bearer secret for everything after registration, so the
// long-lived access token never travels on the polling cadence.
type Client struct {
	mu        sync.Mutex
	serverURL string
	token     string
	webhookID string

	httpc  *http.Client
	probec *http.Client
	logger *zap.Logger
}

func New(serverURL, token, webhookID string) *Client {
	// Local hubs commonly run on self-signed certificates.
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &Client{
		serverURL: NormalizeServerURL(serverURL),
		token:     strings.TrimSpace(token),
		webhookID: webhookID,
		httpc:     &http.Client{Timeout: requestTimeout, Transport: transport},
		probec:    &http.Client{Timeout: probeTimeout, Transport: transport},
		logger:    zap.L(),
	}
}

// UpdateConfig re-normalizes and replaces the server URL and token together.
// The webhook id is left alone; callers decide when registration is stale.
func (c *Client) UpdateConfig(serverURL, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverURL = NormalizeServerURL(serverURL)
	c.token = strings.TrimSpace(token)
}

func (c *Client) SetWebhookID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.webhookID = id
}

func (c *Client) WebhookID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webhookID
}

func (c *Client) snapshot() (serverURL, token, webhookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverURL, c.token, c.webhookID
}

// CheckReachable probes the integration's unauthenticated ping path.
func (c *Client) CheckReachable(ctx context.Context) error {
	serverURL, _, _ := c.snapshot()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+pingPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.probec.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrIntegrationNotInstalled
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ping failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type registrationRequest struct {
	DeviceID     string `json:"device_id"`
	DeviceName   string `json:"device_name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	OSName       string `json:"os_name,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	AppVersion   string `json:"app_version,omitempty"`
}

type registrationResponse struct {
	Success   bool   `json:"success"`
	WebhookID string `json:"webhook_id"`
	Error     string `json:"error"`
}

// RegisterDevice declares the device identity and returns the webhook id the
// hub issued. The caller persists the id before anything else happens.
func (c *Client) RegisterDevice(ctx context.Context, info model.DeviceInfo) (string, error) {
	serverURL, token, _ := c.snapshot()

	body, err := json.Marshal(registrationRequest{
		DeviceID:     info.DeviceID,
		DeviceName:   info.DeviceName,
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		OSName:       info.OSName,
		OSVersion:    info.OSVersion,
		AppVersion:   info.AppVersion,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+registrationPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrIntegrationNotInstalled
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("registration failed (%d): %s", resp.StatusCode, string(respBody))
	}

	result := registrationResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode registration response: %w", err)
	}
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "unknown error"
		}
		return "", &RegistrationRejectedError{Reason: reason}
	}
	if result.WebhookID == "" {
		return "", ErrMalformedResponse
	}

	c.logger.Info("device registered", zap.String("device_id", info.DeviceID))
	return result.WebhookID, nil
}

type webhookPayload struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sensorRegistration struct {
	UniqueID    string      `json:"sensor_unique_id"`
	Name        string      `json:"sensor_name"`
	Type        string      `json:"sensor_type"`
	State       model.Value `json:"sensor_state"`
	DeviceClass string      `json:"sensor_device_class,omitempty"`
	Unit        string      `json:"sensor_unit_of_measurement,omitempty"`
	StateClass  string      `json:"sensor_state_class,omitempty"`
	Icon        string      `json:"sensor_icon,omitempty"`
}

type sensorStateUpdate struct {
	UniqueID   string         `json:"sensor_unique_id"`
	State      model.Value    `json:"sensor_state"`
	Attributes map[string]any `json:"sensor_attributes"`
	Icon       string         `json:"sensor_icon,omitempty"`
}

// RegisterSensor declares one sensor's metadata. Idempotent on the hub side;
// re-declaring a known sensor is safe.
func (c *Client) RegisterSensor(ctx context.Context, sensor model.SensorValue) error {
	payload := webhookPayload{
		Type: commandRegisterSensor,
		Data: sensorRegistration{
			UniqueID:    sensor.UniqueID,
			Name:        sensor.Name,
			Type:        sensor.Type.String(),
			State:       sensor.State,
			DeviceClass: sensor.DeviceClass,
			Unit:        sensor.Unit,
			StateClass:  sensor.StateClass,
			Icon:        sensor.Icon,
		},
	}
	resp, err := c.postWebhook(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrWebhookExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sensor registration failed (%d): %s", resp.StatusCode, string(body))
	}
	c.logger.Debug("registered sensor", zap.String("sensor", sensor.UniqueID))
	return nil
}

func (c *Client) RegisterSensors(ctx context.Context, sensors []model.SensorValue) error {
	for _, sensor := range sensors {
		if err := c.RegisterSensor(ctx, sensor); err != nil {
			return fmt.Errorf("sensor %s: %w", sensor.UniqueID, err)
		}
	}
	return nil
}

// UpdateSensors pushes all states in a single batched webhook call. An empty
// batch succeeds immediately without touching the network.
func (c *Client) UpdateSensors(ctx context.Context, sensors []model.SensorValue) error {
	if len(sensors) == 0 {
		return nil
	}

	updates := lo.Map(sensors, func(s model.SensorValue, _ int) sensorStateUpdate {
		attrs := s.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		return sensorStateUpdate{
			UniqueID:   s.UniqueID,
			State:      s.State,
			Attributes: attrs,
			Icon:       s.Icon,
		}
	})

	resp, err := c.postWebhook(ctx, webhookPayload{
		Type: commandUpdateSensorStates,
		Data: map[string]any{"sensors": updates},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrWebhookExpired
	case resp.StatusCode == http.StatusNotFound:
		return ErrIntegrationRemoved
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(resp.Body)
		return &PushError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	c.logger.Debug("updated sensors", zap.Int("count", len(sensors)))
	return nil
}

// ProbeWebhook pushes an empty sensor batch purely to see whether the
// webhook still answers. Unlike UpdateSensors the empty batch does go on
// the wire here.
func (c *Client) ProbeWebhook(ctx context.Context) error {
	resp, err := c.postWebhook(ctx, webhookPayload{
		Type: commandUpdateSensorStates,
		Data: map[string]any{"sensors": []sensorStateUpdate{}},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrWebhookExpired
	case resp.StatusCode == http.StatusNotFound:
		return ErrIntegrationRemoved
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(resp.Body)
		return &PushError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// CheckWebhookValid reports webhook liveness as a boolean. Network failures
// count as invalid rather than propagating.
func (c *Client) CheckWebhookValid(ctx context.Context) bool {
	return c.ProbeWebhook(ctx) == nil
}

func (c *Client) postWebhook(ctx context.Context, payload webhookPayload) (*http.Response, error) {
	serverURL, _, webhookID := c.snapshot()
	if webhookID == "" {
		return nil, ErrNotRegistered
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+webhookPath+webhookID, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}
