package sensor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ha-desktop/agent/internal/pkg/model"
)

const bytesPerGB = 1 << 30

// Collector owns the sensor catalog, queries the metric sources and
// materializes wire-ready sensor values. It knows nothing about the network.
type Collector struct {
	sources Sources

	mu      sync.Mutex
	enabled map[string]bool

	logger *zap.Logger
}

type Option func(*Collector)

// WithSources swaps the OS-backed sources, primarily for tests.
func WithSources(s Sources) Option {
	return func(c *Collector) {
		c.sources = s
	}
}

func New(enabled map[string]bool, opts ...Option) *Collector {
	c := &Collector{
		sources: DefaultSources(),
		enabled: cloneEnabled(enabled),
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cloneEnabled(enabled map[string]bool) map[string]bool {
	out := make(map[string]bool, len(enabled))
	for id, on := range enabled {
		out[id] = on
	}
	return out
}

// SetEnabledSensors replaces the enablement map atomically.
func (c *Collector) SetEnabledSensors(enabled map[string]bool) {
	next := cloneEnabled(enabled)
	c.mu.Lock()
	c.enabled = next
	c.mu.Unlock()
}

// isEnabled resolves a catalog id against the map, falling back to the
// catalog default: interval metrics on, identity facts off.
func (c *Collector) isEnabled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on, ok := c.enabled[id]; ok {
		return on
	}
	return catalogDefault(id)
}

func (c *Collector) anyEnabled(ids ...string) bool {
	return lo.SomeBy(ids, c.isEnabled)
}

// SensorList reports the full catalog, disabled entries included, for the
// configuration surface.
func (c *Collector) SensorList() []model.SensorListItem {
	return lo.Map(catalog, func(def definition, _ int) model.SensorListItem {
		return model.SensorListItem{
			ID:                def.id,
			Name:              def.name,
			Enabled:           c.isEnabled(def.id),
			UpdatesAtInterval: def.category == model.CategoryDynamic,
		}
	})
}

// HostInfo exposes the host identity snapshot for device registration.
func (c *Collector) HostInfo(ctx context.Context) (HostReading, error) {
	return c.sources.Host.Sample(ctx)
}

// CollectAll returns static sensors followed by dynamic ones, used for the
// initial declaration and first push after registration.
func (c *Collector) CollectAll(ctx context.Context) []model.SensorValue {
	return append(c.CollectStatic(ctx), c.CollectDynamic(ctx)...)
}

// CollectDynamic samples every source feeding an enabled interval sensor
// exactly once and fans the snapshot out. Sensors whose reading is
// unavailable are omitted rather than sent as a placeholder state; that
// includes binary sensors (a battery that is not present has no charging
// state worth reporting).
func (c *Collector) CollectDynamic(ctx context.Context) []model.SensorValue {
	values := make([]model.SensorValue, 0, 16)

	if c.anyEnabled("cpu_usage", "cpu_frequency", "cpu_temperature") {
		if reading, err := c.sources.CPU.Sample(ctx); err != nil {
			c.logger.Warn("cpu sample failed", zap.Error(err))
		} else {
			values = append(values, c.cpuDynamic(reading)...)
		}
	}

	if c.anyEnabled("memory_usage", "memory_used") {
		if reading, err := c.sources.Memory.Sample(ctx); err != nil {
			c.logger.Warn("memory sample failed", zap.Error(err))
		} else {
			values = append(values, c.memoryDynamic(reading)...)
		}
	}

	if c.isEnabled("disk_usage") {
		if partitions, err := c.sources.Disk.Sample(ctx); err != nil {
			c.logger.Warn("disk sample failed", zap.Error(err))
		} else {
			values = append(values, diskSensors(partitions)...)
		}
	}

	if c.isEnabled("gpu") {
		if gpus, err := c.sources.GPU.Sample(ctx); err != nil {
			c.logger.Warn("gpu sample failed", zap.Error(err))
		} else {
			values = append(values, gpuDynamic(gpus)...)
		}
	}

	if c.isEnabled("network") {
		if ifaces, err := c.sources.Network.Sample(ctx); err != nil {
			c.logger.Warn("network sample failed", zap.Error(err))
		} else {
			values = append(values, networkSensors(ifaces)...)
		}
	}

	if c.isEnabled("battery") {
		if batteries, err := c.sources.Battery.Sample(ctx); err != nil {
			c.logger.Warn("battery sample failed", zap.Error(err))
		} else {
			values = append(values, batterySensors(batteries)...)
		}
	}

	return values
}

// CollectStatic materializes the one-shot identity and hardware sensors.
func (c *Collector) CollectStatic(ctx context.Context) []model.SensorValue {
	values := make([]model.SensorValue, 0, 8)

	if c.isEnabled("cpu_model") {
		if reading, err := c.sources.CPU.Sample(ctx); err != nil {
			c.logger.Warn("cpu sample failed", zap.Error(err))
		} else if reading.Model != "" {
			values = append(values, model.SensorValue{
				UniqueID: "cpu_model",
				Name:     "CPU Model",
				State:    model.StringValue(reading.Model),
				Type:     model.TypeSensor,
				Icon:     "mdi:cpu-64-bit",
				Attributes: map[string]any{
					"core_count":         reading.CoreCount,
					"logical_core_count": reading.LogicalCoreCount,
				},
			})
		}
	}

	if c.anyEnabled("os_version", "hostname", "motherboard", "bios_version") {
		if reading, err := c.sources.Host.Sample(ctx); err != nil {
			c.logger.Warn("host sample failed", zap.Error(err))
		} else {
			values = append(values, c.hostStatic(reading)...)
		}
	}

	if c.isEnabled("gpu") {
		if gpus, err := c.sources.GPU.Sample(ctx); err != nil {
			c.logger.Warn("gpu sample failed", zap.Error(err))
		} else {
			values = append(values, gpuStatic(gpus)...)
		}
	}

	if c.isEnabled("memory_total") {
		if reading, err := c.sources.Memory.Sample(ctx); err != nil {
			c.logger.Warn("memory sample failed", zap.Error(err))
		} else {
			values = append(values, model.SensorValue{
				UniqueID:    "memory_total",
				Name:        "Memory Total",
				State:       model.FormattedFloat(float64(reading.TotalBytes)/bytesPerGB, 1),
				Type:        model.TypeSensor,
				DeviceClass: model.DeviceClassDataSize,
				Unit:        "GB",
				Icon:        "mdi:memory",
			})
		}
	}

	return values
}

func (c *Collector) cpuDynamic(reading CPUReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, 3)
	if c.isEnabled("cpu_usage") {
		values = append(values, model.SensorValue{
			UniqueID:          "cpu_usage",
			Name:              "CPU Usage",
			State:             model.FormattedFloat(reading.UsagePercent, 1),
			Type:              model.TypeSensor,
			Unit:              "%",
			StateClass:        model.StateClassMeasurement,
			Icon:              "mdi:cpu-64-bit",
			UpdatesAtInterval: true,
		})
	}
	if c.isEnabled("cpu_frequency") {
		values = append(values, model.SensorValue{
			UniqueID:          "cpu_frequency",
			Name:              "CPU Frequency",
			State:             model.FloatValue(reading.FrequencyMHz),
			Type:              model.TypeSensor,
			DeviceClass:       model.DeviceClassFrequency,
			Unit:              "MHz",
			StateClass:        model.StateClassMeasurement,
			Icon:              "mdi:speedometer",
			UpdatesAtInterval: true,
		})
	}
	if c.isEnabled("cpu_temperature") && reading.Temperature != nil {
		values = append(values, model.SensorValue{
			UniqueID:          "cpu_temperature",
			Name:              "CPU Temperature",
			State:             model.FormattedFloat(*reading.Temperature, 1),
			Type:              model.TypeSensor,
			DeviceClass:       model.DeviceClassTemperature,
			Unit:              "°C",
			StateClass:        model.StateClassMeasurement,
			Icon:              "mdi:thermometer",
			UpdatesAtInterval: true,
		})
	}
	return values
}

func (c *Collector) memoryDynamic(reading MemoryReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, 2)
	if c.isEnabled("memory_usage") {
		values = append(values, model.SensorValue{
			UniqueID:          "memory_usage",
			Name:              "Memory Usage",
			State:             model.FormattedFloat(reading.UsagePercent, 1),
			Type:              model.TypeSensor,
			Unit:              "%",
			StateClass:        model.StateClassMeasurement,
			Icon:              "mdi:memory",
			UpdatesAtInterval: true,
		})
	}
	if c.isEnabled("memory_used") {
		values = append(values, model.SensorValue{
			UniqueID:          "memory_used",
			Name:              "Memory Used",
			State:             model.FormattedFloat(float64(reading.UsedBytes)/bytesPerGB, 2),
			Type:              model.TypeSensor,
			DeviceClass:       model.DeviceClassDataSize,
			Unit:              "GB",
			StateClass:        model.StateClassMeasurement,
			Icon:              "mdi:memory",
			UpdatesAtInterval: true,
		})
	}
	return values
}

func (c *Collector) hostStatic(reading HostReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, 4)
	if c.isEnabled("os_version") {
		values = append(values, model.SensorValue{
			UniqueID: "os_version",
			Name:     "OS Version",
			State:    model.StringValue(strings.TrimSpace(reading.OSName + " " + reading.OSVersion)),
			Type:     model.TypeSensor,
			Icon:     "mdi:monitor",
			Attributes: map[string]any{
				"os_name":    reading.OSName,
				"os_version": reading.OSVersion,
			},
		})
	}
	if c.isEnabled("hostname") && reading.Hostname != "" {
		values = append(values, model.SensorValue{
			UniqueID: "hostname",
			Name:     "Hostname",
			State:    model.StringValue(reading.Hostname),
			Type:     model.TypeSensor,
			Icon:     "mdi:desktop-tower",
		})
	}
	if c.isEnabled("motherboard") && reading.BoardVendor != "" && reading.BoardModel != "" {
		values = append(values, model.SensorValue{
			UniqueID: "motherboard",
			Name:     "Motherboard",
			State:    model.StringValue(reading.BoardVendor + " " + reading.BoardModel),
			Type:     model.TypeSensor,
			Icon:     "mdi:expansion-card",
			Attributes: map[string]any{
				"manufacturer": reading.BoardVendor,
				"model":        reading.BoardModel,
			},
		})
	}
	if c.isEnabled("bios_version") && reading.BIOSVersion != "" {
		values = append(values, model.SensorValue{
			UniqueID: "bios_version",
			Name:     "BIOS Version",
			State:    model.StringValue(reading.BIOSVersion),
			Type:     model.TypeSensor,
			Icon:     "mdi:chip",
		})
	}
	return values
}

func diskSensors(partitions []PartitionReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, len(partitions))
	seen := map[string]int{}
	for _, p := range partitions {
		id := uniqueInstanceID("disk_usage_"+sanitizeInstanceID(p.MountPoint), seen)
		values = append(values, model.SensorValue{
			UniqueID:   id,
			Name:       "Disk Usage " + p.MountPoint,
			State:      model.FormattedFloat(p.UsagePercent, 1),
			Type:       model.TypeSensor,
			Unit:       "%",
			StateClass: model.StateClassMeasurement,
			Icon:       "mdi:harddisk",
			Attributes: map[string]any{
				"total_gb":   model.FormattedFloat(float64(p.TotalBytes)/bytesPerGB, 1).String(),
				"used_gb":    model.FormattedFloat(float64(p.UsedBytes)/bytesPerGB, 1).String(),
				"filesystem": p.Filesystem,
				"device":     p.Device,
			},
			UpdatesAtInterval: true,
		})
	}
	return values
}

func gpuDynamic(gpus []GPUReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, len(gpus)*3)
	for i, gpu := range gpus {
		suffix, nameSuffix := instanceSuffix(i, len(gpus))
		if gpu.UsagePercent != nil {
			values = append(values, model.SensorValue{
				UniqueID:          "gpu_usage" + suffix,
				Name:              "GPU Usage" + nameSuffix,
				State:             model.FormattedFloat(*gpu.UsagePercent, 1),
				Type:              model.TypeSensor,
				Unit:              "%",
				StateClass:        model.StateClassMeasurement,
				Icon:              "mdi:expansion-card",
				UpdatesAtInterval: true,
			})
		}
		if gpu.Temperature != nil {
			values = append(values, model.SensorValue{
				UniqueID:          "gpu_temperature" + suffix,
				Name:              "GPU Temperature" + nameSuffix,
				State:             model.FormattedFloat(*gpu.Temperature, 1),
				Type:              model.TypeSensor,
				DeviceClass:       model.DeviceClassTemperature,
				Unit:              "°C",
				StateClass:        model.StateClassMeasurement,
				Icon:              "mdi:thermometer",
				UpdatesAtInterval: true,
			})
		}
		if gpu.VRAMUsedMB != nil {
			values = append(values, model.SensorValue{
				UniqueID:          "gpu_vram_used" + suffix,
				Name:              "GPU VRAM Used" + nameSuffix,
				State:             model.IntValue(int64(*gpu.VRAMUsedMB)),
				Type:              model.TypeSensor,
				DeviceClass:       model.DeviceClassDataSize,
				Unit:              "MB",
				StateClass:        model.StateClassMeasurement,
				Icon:              "mdi:expansion-card-variant",
				UpdatesAtInterval: true,
			})
		}
	}
	return values
}

func gpuStatic(gpus []GPUReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, len(gpus))
	for i, gpu := range gpus {
		suffix, nameSuffix := instanceSuffix(i, len(gpus))
		attrs := map[string]any{"vendor": gpu.Vendor}
		if gpu.DriverVersion != "" {
			attrs["driver_version"] = gpu.DriverVersion
		}
		if gpu.VRAMTotalMB != nil {
			attrs["vram_total_mb"] = *gpu.VRAMTotalMB
		}
		values = append(values, model.SensorValue{
			UniqueID:   "gpu_model" + suffix,
			Name:       "GPU Model" + nameSuffix,
			State:      model.StringValue(gpu.Name),
			Type:       model.TypeSensor,
			Icon:       "mdi:expansion-card",
			Attributes: attrs,
		})
	}
	return values
}

func networkSensors(ifaces []InterfaceReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, len(ifaces)*2)
	seen := map[string]int{}
	for _, iface := range ifaces {
		safe := uniqueInstanceID(sanitizeInstanceID(iface.Name), seen)
		// Byte counters go out raw; the hub applies its own unit handling
		// to monotonically increasing totals.
		values = append(values, model.SensorValue{
			UniqueID:    "network_rx_" + safe,
			Name:        "Network RX " + iface.Name,
			State:       model.IntValue(int64(iface.ReceivedBytes)),
			Type:        model.TypeSensor,
			DeviceClass: model.DeviceClassDataSize,
			Unit:        "B",
			StateClass:  model.StateClassTotalIncreasing,
			Icon:        "mdi:download-network",
			Attributes: map[string]any{
				"mac_address":  iface.MACAddress,
				"ip_addresses": iface.IPAddresses,
			},
			UpdatesAtInterval: true,
		})
		values = append(values, model.SensorValue{
			UniqueID:          "network_tx_" + safe,
			Name:              "Network TX " + iface.Name,
			State:             model.IntValue(int64(iface.TransmittedBytes)),
			Type:              model.TypeSensor,
			DeviceClass:       model.DeviceClassDataSize,
			Unit:              "B",
			StateClass:        model.StateClassTotalIncreasing,
			Icon:              "mdi:upload-network",
			UpdatesAtInterval: true,
		})
	}
	return values
}

func batterySensors(batteries []BatteryReading) []model.SensorValue {
	values := make([]model.SensorValue, 0, len(batteries)*2)
	for i, bat := range batteries {
		suffix, nameSuffix := instanceSuffix(i, len(batteries))
		attrs := map[string]any{"state": bat.State}
		if bat.StateOfHealth != nil {
			attrs["state_of_health"] = model.FormattedFloat(*bat.StateOfHealth, 0).String() + "%"
		}
		if bat.CycleCount != nil {
			attrs["cycle_count"] = *bat.CycleCount
		}
		values = append(values, model.SensorValue{
			UniqueID:          "battery_level" + suffix,
			Name:              "Battery Level" + nameSuffix,
			State:             model.FormattedFloat(bat.Percentage, 0),
			Type:              model.TypeSensor,
			DeviceClass:       model.DeviceClassBattery,
			Unit:              "%",
			StateClass:        model.StateClassMeasurement,
			Icon:              "mdi:battery",
			Attributes:        attrs,
			UpdatesAtInterval: true,
		})
		values = append(values, model.SensorValue{
			UniqueID:          "battery_charging" + suffix,
			Name:              "Battery Charging" + nameSuffix,
			State:             model.BoolValue(bat.Charging),
			Type:              model.TypeBinarySensor,
			DeviceClass:       model.DeviceClassBatteryCharging,
			Icon:              "mdi:battery-charging",
			UpdatesAtInterval: true,
		})
	}
	return values
}

// sanitizeInstanceID makes mount points and interface names safe for sensor
// identifiers: path separators, colons, spaces and backslashes become
// underscores, runs collapse, edges are trimmed. The root mount sanitizes
// to "root" so it can never collide with another partition's identifier.
func sanitizeInstanceID(raw string) string {
	replaced := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(raw)
	for strings.Contains(replaced, "__") {
		replaced = strings.ReplaceAll(replaced, "__", "_")
	}
	replaced = strings.Trim(replaced, "_")
	if replaced == "" {
		return "root"
	}
	return replaced
}

// uniqueInstanceID appends a counter when two distinct instances sanitize
// to the same identifier.
func uniqueInstanceID(id string, seen map[string]int) string {
	seen[id]++
	if n := seen[id]; n > 1 {
		return fmt.Sprintf("%s_%d", id, n)
	}
	return id
}

// instanceSuffix disambiguates identifiers and display names when more than
// one instance of a hardware kind exists.
func instanceSuffix(index, total int) (idSuffix, nameSuffix string) {
	if total <= 1 {
		return "", ""
	}
	return fmt.Sprintf("_%d", index), fmt.Sprintf(" %d", index)
}
