package sensor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfsBattery enumerates /sys/class/power_supply/BAT*. Desktops and
// non-Linux hosts produce no matches, which reads as "no battery present".
type sysfsBattery struct{}

func (b *sysfsBattery) Sample(_ context.Context) ([]BatteryReading, error) {
	paths, err := filepath.Glob("/sys/class/power_supply/BAT*")
	if err != nil || len(paths) == 0 {
		return nil, nil
	}

	var batteries []BatteryReading
	for _, base := range paths {
		capacity, ok := readSysfsFloat(filepath.Join(base, "capacity"))
		if !ok {
			continue
		}
		state := readSysfsString(filepath.Join(base, "status"))
		reading := BatteryReading{
			Percentage: capacity,
			State:      state,
			Charging:   strings.EqualFold(state, "charging"),
		}
		if cycles, ok := readSysfsFloat(filepath.Join(base, "cycle_count")); ok {
			c := int64(cycles)
			reading.CycleCount = &c
		}
		if health, ok := batteryHealth(base); ok {
			reading.StateOfHealth = &health
		}
		batteries = append(batteries, reading)
	}
	return batteries, nil
}

// batteryHealth derives state-of-health from full vs design capacity,
// whichever of the charge_/energy_ pairs the firmware exposes.
func batteryHealth(base string) (float64, bool) {
	for _, prefix := range []string{"charge", "energy"} {
		full, okFull := readSysfsFloat(filepath.Join(base, prefix+"_full"))
		design, okDesign := readSysfsFloat(filepath.Join(base, prefix+"_full_design"))
		if okFull && okDesign && design > 0 {
			return full / design * 100, true
		}
	}
	return 0, false
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysfsFloat(path string) (float64, bool) {
	v, err := strconv.ParseFloat(readSysfsString(path), 64)
	return v, err == nil
}
