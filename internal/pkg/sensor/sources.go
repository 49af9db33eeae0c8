package sensor

import "context"

// Readings are plain snapshots returned by metric sources. A source is
// sampled at most once per collect call, whatever number of sensors it
// feeds, so values fanned out to several sensors come from one snapshot.

type CPUReading struct {
	Model            string
	UsagePercent     float64
	FrequencyMHz     float64
	Temperature      *float64
	CoreCount        int
	LogicalCoreCount int
}

type MemoryReading struct {
	TotalBytes     uint64
	UsedBytes      uint64
	AvailableBytes uint64
	UsagePercent   float64
}

type PartitionReading struct {
	Device       string
	MountPoint   string
	Filesystem   string
	TotalBytes   uint64
	UsedBytes    uint64
	UsagePercent float64
}

type InterfaceReading struct {
	Name             string
	MACAddress       string
	ReceivedBytes    uint64
	TransmittedBytes uint64
	IPAddresses      []string
}

type GPUReading struct {
	Name          string
	Vendor        string
	DriverVersion string
	UsagePercent  *float64
	Temperature   *float64
	VRAMTotalMB   *uint64
	VRAMUsedMB    *uint64
}

type BatteryReading struct {
	Percentage    float64
	State         string
	StateOfHealth *float64
	CycleCount    *int64
	Charging      bool
}

type HostReading struct {
	OSName      string
	OSVersion   string
	Hostname    string
	BoardVendor string
	BoardModel  string
	BIOSVersion string
}

// Sources that can serve multiple hardware instances return a slice; an
// empty slice (or an error) means the hardware is absent and the matching
// sensors are omitted from the cycle.
type (
	CPUSource interface {
		Sample(ctx context.Context) (CPUReading, error)
	}
	MemorySource interface {
		Sample(ctx context.Context) (MemoryReading, error)
	}
	DiskSource interface {
		Sample(ctx context.Context) ([]PartitionReading, error)
	}
	NetworkSource interface {
		Sample(ctx context.Context) ([]InterfaceReading, error)
	}
	GPUSource interface {
		Sample(ctx context.Context) ([]GPUReading, error)
	}
	BatterySource interface {
		Sample(ctx context.Context) ([]BatteryReading, error)
	}
	HostSource interface {
		Sample(ctx context.Context) (HostReading, error)
	}
)

// Sources bundles one source per metric domain.
type Sources struct {
	CPU     CPUSource
	Memory  MemorySource
	Disk    DiskSource
	Network NetworkSource
	GPU     GPUSource
	Battery BatterySource
	Host    HostSource
}

// DefaultSources wires the OS-backed implementations.
func DefaultSources() Sources {
	return Sources{
		CPU:     &gopsutilCPU{},
		Memory:  &gopsutilMemory{},
		Disk:    &gopsutilDisk{},
		Network: &gopsutilNetwork{},
		GPU:     &nvidiaSMI{},
		Battery: &sysfsBattery{},
		Host:    &gopsutilHost{},
	}
}
