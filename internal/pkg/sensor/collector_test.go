package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha-desktop/agent/internal/pkg/model"
)

type stubCPU struct {
	calls   int
	reading CPUReading
	err     error
}

func (s *stubCPU) Sample(context.Context) (CPUReading, error) {
	s.calls++
	return s.reading, s.err
}

type stubMemory struct {
	calls   int
	reading MemoryReading
}

func (s *stubMemory) Sample(context.Context) (MemoryReading, error) {
	s.calls++
	return s.reading, nil
}

type stubDisk struct {
	partitions []PartitionReading
}

func (s *stubDisk) Sample(context.Context) ([]PartitionReading, error) {
	return s.partitions, nil
}

type stubNetwork struct {
	ifaces []InterfaceReading
}

func (s *stubNetwork) Sample(context.Context) ([]InterfaceReading, error) {
	return s.ifaces, nil
}

type stubGPU struct {
	gpus []GPUReading
}

func (s *stubGPU) Sample(context.Context) ([]GPUReading, error) {
	return s.gpus, nil
}

type stubBattery struct {
	batteries []BatteryReading
	err       error
}

func (s *stubBattery) Sample(context.Context) ([]BatteryReading, error) {
	return s.batteries, s.err
}

type stubHost struct {
	reading HostReading
}

func (s *stubHost) Sample(context.Context) (HostReading, error) {
	return s.reading, nil
}

func temperatureValue(v float64) *float64 { return &v }

func stubSources() Sources {
	return Sources{
		CPU: &stubCPU{reading: CPUReading{
			Model:            "TestCPU 9000",
			UsagePercent:     42.5,
			FrequencyMHz:     3600,
			Temperature:      temperatureValue(61.2),
			CoreCount:        8,
			LogicalCoreCount: 16,
		}},
		Memory: &stubMemory{reading: MemoryReading{
			TotalBytes:   32 * bytesPerGB,
			UsedBytes:    8 * bytesPerGB,
			UsagePercent: 25.0,
		}},
		Disk:    &stubDisk{partitions: []PartitionReading{{MountPoint: "/", UsagePercent: 70.2, TotalBytes: 512 * bytesPerGB}}},
		Network: &stubNetwork{ifaces: []InterfaceReading{{Name: "eth0", ReceivedBytes: 1024, TransmittedBytes: 2048}}},
		GPU:     &stubGPU{},
		Battery: &stubBattery{},
		Host: &stubHost{reading: HostReading{
			OSName:    "ubuntu",
			OSVersion: "24.04",
			Hostname:  "workstation",
		}},
	}
}

func sensorIDs(values []model.SensorValue) []string {
	return lo.Map(values, func(v model.SensorValue, _ int) string { return v.UniqueID })
}

func TestSensorListCoversCatalog(t *testing.T) {
	c := New(nil, WithSources(stubSources()))
	list := c.SensorList()
	require.Len(t, list, len(catalog))

	byID := lo.KeyBy(list, func(item model.SensorListItem) string { return item.ID })
	assert.True(t, byID["cpu_usage"].Enabled, "interval metrics default on")
	assert.True(t, byID["cpu_usage"].UpdatesAtInterval)
	assert.False(t, byID["hostname"].Enabled, "identity facts default off")
	assert.False(t, byID["hostname"].UpdatesAtInterval)
	assert.False(t, byID["memory_total"].Enabled)
}

func TestSensorListHonorsOverrides(t *testing.T) {
	c := New(map[string]bool{"cpu_usage": false, "hostname": true}, WithSources(stubSources()))
	byID := lo.KeyBy(c.SensorList(), func(item model.SensorListItem) string { return item.ID })
	assert.False(t, byID["cpu_usage"].Enabled)
	assert.True(t, byID["hostname"].Enabled)
	// untouched entries keep their catalog default
	assert.True(t, byID["memory_usage"].Enabled)
}

func TestCollectDynamicSamplesCPUOnce(t *testing.T) {
	sources := stubSources()
	cpuSource := sources.CPU.(*stubCPU)

	c := New(nil, WithSources(sources))
	values := c.CollectDynamic(context.Background())

	assert.Equal(t, 1, cpuSource.calls, "three cpu sensors share one sample")
	ids := sensorIDs(values)
	assert.Contains(t, ids, "cpu_usage")
	assert.Contains(t, ids, "cpu_frequency")
	assert.Contains(t, ids, "cpu_temperature")
}

func TestCollectDynamicSkipsDisabledSource(t *testing.T) {
	sources := stubSources()
	cpuSource := sources.CPU.(*stubCPU)

	c := New(map[string]bool{
		"cpu_usage":       false,
		"cpu_frequency":   false,
		"cpu_temperature": false,
	}, WithSources(sources))
	values := c.CollectDynamic(context.Background())

	assert.Equal(t, 0, cpuSource.calls, "nothing enabled means no sample")
	for _, id := range sensorIDs(values) {
		assert.NotContains(t, id, "cpu_")
	}
}

func TestCollectDynamicFormatting(t *testing.T) {
	c := New(nil, WithSources(stubSources()))
	byID := lo.KeyBy(c.CollectDynamic(context.Background()), func(v model.SensorValue) string { return v.UniqueID })

	assert.Equal(t, `"42.5"`, mustMarshal(t, byID["cpu_usage"].State))
	assert.Equal(t, `"61.2"`, mustMarshal(t, byID["cpu_temperature"].State))
	assert.Equal(t, `"8.00"`, mustMarshal(t, byID["memory_used"].State))
	assert.Equal(t, `1024`, mustMarshal(t, byID["network_rx_eth0"].State))
	assert.Equal(t, model.StateClassTotalIncreasing, byID["network_rx_eth0"].StateClass)
}

func mustMarshal(t *testing.T, v model.Value) string {
	t.Helper()
	b, err := v.MarshalJSON()
	require.NoError(t, err)
	return string(b)
}

func TestCollectDynamicOmitsUnavailable(t *testing.T) {
	sources := stubSources()
	sources.CPU.(*stubCPU).reading.Temperature = nil
	sources.Battery.(*stubBattery).batteries = nil

	c := New(nil, WithSources(sources))
	ids := sensorIDs(c.CollectDynamic(context.Background()))

	assert.NotContains(t, ids, "cpu_temperature")
	assert.NotContains(t, ids, "battery_level")
	assert.NotContains(t, ids, "battery_charging")
}

func TestCollectDynamicSurvivesSourceError(t *testing.T) {
	sources := stubSources()
	sources.Battery.(*stubBattery).err = errors.New("sysfs unavailable")

	c := New(nil, WithSources(sources))
	ids := sensorIDs(c.CollectDynamic(context.Background()))

	assert.Contains(t, ids, "cpu_usage", "other sources still collected")
	assert.NotContains(t, ids, "battery_level")
}

func TestDiskSensorIdentifiers(t *testing.T) {
	sources := stubSources()
	sources.Disk.(*stubDisk).partitions = []PartitionReading{
		{MountPoint: "/", UsagePercent: 50},
		{MountPoint: "/data", UsagePercent: 60},
		{MountPoint: "/mnt/back up", UsagePercent: 70},
	}

	c := New(nil, WithSources(sources))
	ids := sensorIDs(c.CollectDynamic(context.Background()))

	assert.Contains(t, ids, "disk_usage_root")
	assert.Contains(t, ids, "disk_usage_data")
	assert.Contains(t, ids, "disk_usage_mnt_back_up")
}

func TestDiskSensorIdentifierCollision(t *testing.T) {
	sources := stubSources()
	sources.Disk.(*stubDisk).partitions = []PartitionReading{
		{MountPoint: "/data"},
		{MountPoint: "/data/"},
	}

	c := New(nil, WithSources(sources))
	ids := sensorIDs(c.CollectDynamic(context.Background()))

	assert.Contains(t, ids, "disk_usage_data")
	assert.Contains(t, ids, "disk_usage_data_2")
}

func TestGPUInstanceSuffixes(t *testing.T) {
	usage := func(v float64) *float64 { return &v }

	t.Run("single gpu no suffix", func(t *testing.T) {
		sources := stubSources()
		sources.GPU.(*stubGPU).gpus = []GPUReading{{Name: "RTX 4090", UsagePercent: usage(10)}}

		c := New(nil, WithSources(sources))
		assert.Contains(t, sensorIDs(c.CollectDynamic(context.Background())), "gpu_usage")
	})

	t.Run("multiple gpus indexed", func(t *testing.T) {
		sources := stubSources()
		sources.GPU.(*stubGPU).gpus = []GPUReading{
			{Name: "RTX 4090", UsagePercent: usage(10)},
			{Name: "RTX 4090", UsagePercent: usage(20)},
		}

		c := New(nil, WithSources(sources))
		ids := sensorIDs(c.CollectDynamic(context.Background()))
		assert.Contains(t, ids, "gpu_usage_0")
		assert.Contains(t, ids, "gpu_usage_1")
		assert.NotContains(t, ids, "gpu_usage")
	})
}

func TestCollectStatic(t *testing.T) {
	c := New(map[string]bool{
		"cpu_model":    true,
		"os_version":   true,
		"hostname":     true,
		"memory_total": true,
	}, WithSources(stubSources()))

	byID := lo.KeyBy(c.CollectStatic(context.Background()), func(v model.SensorValue) string { return v.UniqueID })

	require.Contains(t, byID, "cpu_model")
	assert.Equal(t, `"TestCPU 9000"`, mustMarshal(t, byID["cpu_model"].State))
	assert.Equal(t, 8, byID["cpu_model"].Attributes["core_count"])

	require.Contains(t, byID, "os_version")
	assert.Equal(t, `"ubuntu 24.04"`, mustMarshal(t, byID["os_version"].State))

	require.Contains(t, byID, "memory_total")
	assert.Equal(t, `"32.0"`, mustMarshal(t, byID["memory_total"].State))

	// motherboard and bios stay enabled-off by default and the stub has no
	// dmi data anyway
	assert.NotContains(t, byID, "motherboard")
	assert.NotContains(t, byID, "bios_version")
}

func TestCollectStaticSkipsAllDisabled(t *testing.T) {
	sources := stubSources()
	cpuSource := sources.CPU.(*stubCPU)

	c := New(nil, WithSources(sources))
	values := c.CollectStatic(context.Background())

	assert.Empty(t, values, "all static sensors default off")
	assert.Equal(t, 0, cpuSource.calls)
}

func TestSetEnabledSensors(t *testing.T) {
	c := New(nil, WithSources(stubSources()))
	require.True(t, c.isEnabled("cpu_usage"))

	c.SetEnabledSensors(map[string]bool{"cpu_usage": false})
	assert.False(t, c.isEnabled("cpu_usage"))
	assert.True(t, c.isEnabled("memory_usage"), "unlisted ids fall back to catalog default")
}

func TestSanitizeInstanceID(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "/", expected: "root"},
		{in: "/data", expected: "data"},
		{in: "/mnt/back up", expected: "mnt_back_up"},
		{in: `C:\`, expected: "C"},
		{in: "eth0", expected: "eth0"},
		{in: "Wi-Fi 2", expected: "Wi-Fi_2"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, sanitizeInstanceID(tc.in), "input %q", tc.in)
	}
}
