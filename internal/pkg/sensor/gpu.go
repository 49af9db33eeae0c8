package sensor

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const smiTimeout = 2 * time.Second

// nvidiaSMI queries GPUs through the nvidia-smi CLI. Hosts without the
// driver return no output and therefore no GPU sensors.
type nvidiaSMI struct{}

func (n *nvidiaSMI) Sample(ctx context.Context) ([]GPUReading, error) {
	ctx, cancel := context.WithTimeout(ctx, smiTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=name,driver_version,utilization.gpu,memory.used,memory.total,temperature.gpu",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, nil
	}

	var gpus []GPUReading
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 6 {
			continue
		}
		reading := GPUReading{
			Name:          strings.TrimSpace(parts[0]),
			Vendor:        "NVIDIA",
			DriverVersion: strings.TrimSpace(parts[1]),
		}
		if v, ok := smiFloat(parts[2]); ok {
			reading.UsagePercent = &v
		}
		if v, ok := smiUint(parts[3]); ok {
			reading.VRAMUsedMB = &v
		}
		if v, ok := smiUint(parts[4]); ok {
			reading.VRAMTotalMB = &v
		}
		if v, ok := smiFloat(parts[5]); ok {
			reading.Temperature = &v
		}
		gpus = append(gpus, reading)
	}
	return gpus, nil
}

// nvidia-smi prints "[N/A]" for fields a given board does not expose.
func smiFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

func smiUint(s string) (uint64, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}
