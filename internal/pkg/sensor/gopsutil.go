package sensor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
)

type gopsutilCPU struct{}

func (g *gopsutilCPU) Sample(ctx context.Context) (CPUReading, error) {
	reading := CPUReading{}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return reading, err
	}
	if len(percents) > 0 {
		reading.UsagePercent = percents[0]
	}

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		reading.Model = infos[0].ModelName
		reading.FrequencyMHz = infos[0].Mhz
	}
	if physical, err := cpu.CountsWithContext(ctx, false); err == nil {
		reading.CoreCount = physical
	}
	if logical, err := cpu.CountsWithContext(ctx, true); err == nil {
		reading.LogicalCoreCount = logical
	}
	reading.Temperature = cpuTemperature(ctx)
	return reading, nil
}

// cpuTemperature scans thermal probes for a CPU-looking label. Machines
// without one report nil and the temperature sensor is omitted.
func cpuTemperature(ctx context.Context) *float64 {
	temps, err := sensors.TemperaturesWithContext(ctx)
	if err != nil {
		return nil
	}
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if strings.Contains(key, "cpu") || strings.Contains(key, "core") ||
			strings.Contains(key, "package") || strings.Contains(key, "k10temp") {
			v := t.Temperature
			return &v
		}
	}
	return nil
}

type gopsutilMemory struct{}

func (g *gopsutilMemory) Sample(ctx context.Context) (MemoryReading, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryReading{}, err
	}
	return MemoryReading{
		TotalBytes:     vm.Total,
		UsedBytes:      vm.Used,
		AvailableBytes: vm.Available,
		UsagePercent:   vm.UsedPercent,
	}, nil
}

type gopsutilDisk struct{}

func (g *gopsutilDisk) Sample(ctx context.Context) ([]PartitionReading, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	readings := make([]PartitionReading, 0, len(parts))
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		readings = append(readings, PartitionReading{
			Device:       p.Device,
			MountPoint:   p.Mountpoint,
			Filesystem:   p.Fstype,
			TotalBytes:   usage.Total,
			UsedBytes:    usage.Used,
			UsagePercent: usage.UsedPercent,
		})
	}
	return readings, nil
}

type gopsutilNetwork struct{}

func (g *gopsutilNetwork) Sample(ctx context.Context) ([]InterfaceReading, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	ifaces, _ := net.InterfacesWithContext(ctx)

	macs := make(map[string]string, len(ifaces))
	addrs := make(map[string][]string, len(ifaces))
	for _, iface := range ifaces {
		macs[iface.Name] = iface.HardwareAddr
		for _, a := range iface.Addrs {
			// Addr carries CIDR notation; the bare address reads better
			// as an attribute.
			addrs[iface.Name] = append(addrs[iface.Name], strings.SplitN(a.Addr, "/", 2)[0])
		}
	}

	readings := make([]InterfaceReading, 0, len(counters))
	for _, c := range counters {
		readings = append(readings, InterfaceReading{
			Name:             c.Name,
			MACAddress:       macs[c.Name],
			ReceivedBytes:    c.BytesRecv,
			TransmittedBytes: c.BytesSent,
			IPAddresses:      addrs[c.Name],
		})
	}
	return readings, nil
}

type gopsutilHost struct{}

func (g *gopsutilHost) Sample(ctx context.Context) (HostReading, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostReading{}, err
	}
	reading := HostReading{
		OSName:    info.Platform,
		OSVersion: info.PlatformVersion,
		Hostname:  info.Hostname,
	}
	if reading.OSName == "" {
		reading.OSName = info.OS
	}
	reading.BoardVendor = readDMI("board_vendor")
	reading.BoardModel = readDMI("board_name")
	reading.BIOSVersion = readDMI("bios_version")
	return reading, nil
}

// readDMI best-effort reads a DMI identity field. Present on Linux only;
// elsewhere the file is simply missing and the value stays empty.
func readDMI(field string) string {
	data, err := os.ReadFile(filepath.Join("/sys/devices/virtual/dmi/id", field))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
