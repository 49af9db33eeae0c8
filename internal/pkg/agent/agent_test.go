package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha-desktop/agent/internal/pkg/hass"
	"github.com/ha-desktop/agent/internal/pkg/sensor"
	"github.com/ha-desktop/agent/internal/pkg/settings"
)

// fakeHub is a minimal stand-in for the hub's desktop app integration.
type fakeHub struct {
	srv *httptest.Server

	webhookStatus atomic.Int64 // response code for webhook posts

	pings           atomic.Int64
	registrations   atomic.Int64
	sensorRegisters atomic.Int64
	sensorUpdates   atomic.Int64
	totalRequests   atomic.Int64
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{}
	h.webhookStatus.Store(http.StatusOK)
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.totalRequests.Add(1)
		switch {
		case r.URL.Path == "/api/desktop_app/ping":
			h.pings.Add(1)
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/desktop_app/registrations":
			h.registrations.Add(1)
			if r.Header.Get("Authorization") != "Bearer test-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "webhook_id": "abc123"})
		case r.URL.Path == "/api/webhook/abc123":
			status := int(h.webhookStatus.Load())
			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			payload := struct {
				Type string `json:"type"`
			}{}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			switch payload.Type {
			case "register_sensor":
				h.sensorRegisters.Add(1)
			case "update_sensor_states":
				h.sensorUpdates.Add(1)
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

type fixedCPU struct{}

func (fixedCPU) Sample(context.Context) (sensor.CPUReading, error) {
	return sensor.CPUReading{Model: "TestCPU", UsagePercent: 40, FrequencyMHz: 3000, CoreCount: 4, LogicalCoreCount: 8}, nil
}

type fixedMemory struct{}

func (fixedMemory) Sample(context.Context) (sensor.MemoryReading, error) {
	return sensor.MemoryReading{TotalBytes: 16 << 30, UsedBytes: 4 << 30, UsagePercent: 25}, nil
}

type fixedDisk struct{}

func (fixedDisk) Sample(context.Context) ([]sensor.PartitionReading, error) {
	return []sensor.PartitionReading{{MountPoint: "/", UsagePercent: 55, TotalBytes: 256 << 30}}, nil
}

type fixedNetwork struct{}

func (fixedNetwork) Sample(context.Context) ([]sensor.InterfaceReading, error) {
	return []sensor.InterfaceReading{{Name: "eth0", ReceivedBytes: 100, TransmittedBytes: 200}}, nil
}

type emptyGPU struct{}

func (emptyGPU) Sample(context.Context) ([]sensor.GPUReading, error) { return nil, nil }

type emptyBattery struct{}

func (emptyBattery) Sample(context.Context) ([]sensor.BatteryReading, error) { return nil, nil }

type fixedHost struct{}

func (fixedHost) Sample(context.Context) (sensor.HostReading, error) {
	return sensor.HostReading{OSName: "ubuntu", OSVersion: "24.04", Hostname: "workstation"}, nil
}

func testSources() sensor.Sources {
	return sensor.Sources{
		CPU:     fixedCPU{},
		Memory:  fixedMemory{},
		Disk:    fixedDisk{},
		Network: fixedNetwork{},
		GPU:     emptyGPU{},
		Battery: emptyBattery{},
		Host:    fixedHost{},
	}
}

func newTestAgent(t *testing.T, st settings.Settings) (*Agent, *settings.FileStore) {
	t.Helper()
	store := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, store.Save(st))

	client := hass.New(st.ServerURL, st.AccessToken, st.WebhookID)
	collector := sensor.New(st.EnabledSensors, sensor.WithSources(testSources()))
	return New(st, store, client, collector, "0.3.0", WithSettleDelay(0)), store
}

func testSettings(serverURL string) settings.Settings {
	return settings.Settings{
		ServerURL:      serverURL,
		AccessToken:    "test-token",
		DeviceID:       "dev-1",
		UpdateInterval: 1,
		Language:       "en",
		EnabledSensors: map[string]bool{},
	}
}

func TestRegisterIncompleteConfig(t *testing.T) {
	hub := newFakeHub(t)
	a, _ := newTestAgent(t, settings.Settings{DeviceID: "dev-1", UpdateInterval: 60, EnabledSensors: map[string]bool{}})

	_, err := a.Register(context.Background())
	assert.ErrorIs(t, err, ErrConfigIncomplete)
	assert.EqualValues(t, 0, hub.totalRequests.Load(), "validation fails before any network call")
	assert.False(t, a.Registered())
}

func TestRegisterWorkflow(t *testing.T) {
	hub := newFakeHub(t)
	a, store := newTestAgent(t, testSettings(hub.srv.URL))

	webhookID, err := a.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", webhookID)
	assert.True(t, a.Registered())

	assert.EqualValues(t, 1, hub.pings.Load())
	assert.EqualValues(t, 1, hub.registrations.Load())
	assert.EqualValues(t, 1, hub.sensorUpdates.Load(), "initial states go out as one batch")

	// defaults: cpu usage/frequency, memory usage/used, one disk, rx+tx for
	// one interface; no gpu, no battery, no cpu temperature from the stub
	assert.EqualValues(t, 7, hub.sensorRegisters.Load())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", persisted.WebhookID)
	assert.Equal(t, "abc123", a.Settings().WebhookID)
}

func TestRegisterUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a, _ := newTestAgent(t, testSettings(srv.URL))
	_, err := a.Register(context.Background())
	assert.ErrorIs(t, err, hass.ErrUnreachable)
	assert.False(t, a.Registered())
}

func TestUpdateNow(t *testing.T) {
	t.Run("requires registration", func(t *testing.T) {
		hub := newFakeHub(t)
		a, _ := newTestAgent(t, testSettings(hub.srv.URL))

		err := a.UpdateNow(context.Background())
		assert.ErrorIs(t, err, hass.ErrNotRegistered)
		assert.EqualValues(t, 0, hub.totalRequests.Load())
	})

	t.Run("pushes one batch", func(t *testing.T) {
		hub := newFakeHub(t)
		st := testSettings(hub.srv.URL)
		st.WebhookID = "abc123"
		a, _ := newTestAgent(t, st)
		require.True(t, a.Registered(), "stored webhook id starts the agent registered")

		require.NoError(t, a.UpdateNow(context.Background()))
		assert.EqualValues(t, 1, hub.sensorUpdates.Load())
	})
}

func TestCheckWebhook(t *testing.T) {
	t.Run("gone demotes", func(t *testing.T) {
		hub := newFakeHub(t)
		st := testSettings(hub.srv.URL)
		st.WebhookID = "abc123"
		a, _ := newTestAgent(t, st)

		hub.webhookStatus.Store(http.StatusGone)
		a.CheckWebhook(context.Background())
		assert.False(t, a.Registered())
		assert.Equal(t, "abc123", a.Settings().WebhookID, "stored webhook id is kept")
	})

	t.Run("removed demotes", func(t *testing.T) {
		hub := newFakeHub(t)
		st := testSettings(hub.srv.URL)
		st.WebhookID = "abc123"
		a, _ := newTestAgent(t, st)

		hub.webhookStatus.Store(http.StatusNotFound)
		a.CheckWebhook(context.Background())
		assert.False(t, a.Registered())
	})

	t.Run("transient failure leaves flag alone", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		st := testSettings(srv.URL)
		st.WebhookID = "abc123"
		a, _ := newTestAgent(t, st)

		a.CheckWebhook(context.Background())
		assert.True(t, a.Registered())
	})

	t.Run("skipped when not registered", func(t *testing.T) {
		hub := newFakeHub(t)
		a, _ := newTestAgent(t, testSettings(hub.srv.URL))

		a.CheckWebhook(context.Background())
		assert.EqualValues(t, 0, hub.totalRequests.Load())
	})
}

func TestRunLoopDemotesOnExpiredWebhook(t *testing.T) {
	hub := newFakeHub(t)
	st := testSettings(hub.srv.URL)
	st.WebhookID = "abc123"
	a, _ := newTestAgent(t, st)

	hub.webhookStatus.Store(http.StatusGone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, 0) }()

	require.Eventually(t, func() bool { return !a.Registered() }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("run loop did not stop on cancel")
	}
}

func TestSaveSettings(t *testing.T) {
	t.Run("credential change clears registration", func(t *testing.T) {
		hub := newFakeHub(t)
		st := testSettings(hub.srv.URL)
		st.WebhookID = "abc123"
		a, store := newTestAgent(t, st)
		require.True(t, a.Registered())

		require.NoError(t, a.SaveSettings(SettingsUpdate{
			ServerURL:      "https://other.local",
			AccessToken:    "test-token",
			UpdateInterval: 30,
		}))

		assert.False(t, a.Registered())
		assert.Empty(t, a.Settings().WebhookID)

		persisted, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, persisted.WebhookID)
		assert.Equal(t, "https://other.local", persisted.ServerURL)
		assert.EqualValues(t, 30, persisted.UpdateInterval)
	})

	t.Run("unchanged credentials keep registration", func(t *testing.T) {
		hub := newFakeHub(t)
		st := testSettings(hub.srv.URL)
		st.WebhookID = "abc123"
		a, _ := newTestAgent(t, st)

		require.NoError(t, a.SaveSettings(SettingsUpdate{
			ServerURL:      hub.srv.URL,
			AccessToken:    "test-token",
			UpdateInterval: 120,
		}))

		assert.True(t, a.Registered())
		assert.Equal(t, "abc123", a.Settings().WebhookID)
		assert.EqualValues(t, 120, a.Settings().UpdateInterval)
	})

	t.Run("normalizes url and token", func(t *testing.T) {
		hub := newFakeHub(t)
		a, _ := newTestAgent(t, testSettings(hub.srv.URL))

		require.NoError(t, a.SaveSettings(SettingsUpdate{
			ServerURL:   "  https://ha.local/api/  ",
			AccessToken: "  spaced-token  ",
		}))

		st := a.Settings()
		assert.Equal(t, "https://ha.local", st.ServerURL)
		assert.Equal(t, "spaced-token", st.AccessToken)
	})
}

func TestToggleSensor(t *testing.T) {
	hub := newFakeHub(t)
	a, store := newTestAgent(t, testSettings(hub.srv.URL))

	require.NoError(t, a.ToggleSensor("cpu_usage", false))

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.False(t, persisted.EnabledSensors["cpu_usage"])

	for _, item := range a.SensorList() {
		if item.ID == "cpu_usage" {
			assert.False(t, item.Enabled)
		}
	}
}
