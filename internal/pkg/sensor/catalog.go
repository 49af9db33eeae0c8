package sensor

import "github.com/ha-desktop/agent/internal/pkg/model"

// definition is one catalog entry. The id is the idempotency key for both
// registration and updates; renaming one creates a new logical sensor on
// the hub, so ids are fixed for the life of the project.
type definition struct {
	id             string
	name           string
	category       model.Category
	defaultEnabled bool
}

// The catalog is fixed. Interval-updating metrics default on, identity and
// other one-shot facts default off so a fresh install does not publish the
// hostname or hardware identity without the user opting in.
var catalog = []definition{
	{id: "cpu_usage", name: "CPU Usage", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "cpu_frequency", name: "CPU Frequency", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "cpu_temperature", name: "CPU Temperature", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "cpu_model", name: "CPU Model", category: model.CategoryStatic, defaultEnabled: false},
	{id: "memory_usage", name: "Memory Usage", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "memory_used", name: "Memory Used", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "memory_total", name: "Memory Total", category: model.CategoryStatic, defaultEnabled: false},
	{id: "disk_usage", name: "Disk Usage", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "gpu", name: "GPU Sensors", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "network", name: "Network Sensors", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "battery", name: "Battery Sensors", category: model.CategoryDynamic, defaultEnabled: true},
	{id: "os_version", name: "OS Version", category: model.CategoryStatic, defaultEnabled: false},
	{id: "hostname", name: "Hostname", category: model.CategoryStatic, defaultEnabled: false},
	{id: "motherboard", name: "Motherboard", category: model.CategoryStatic, defaultEnabled: false},
	{id: "bios_version", name: "BIOS Version", category: model.CategoryStatic, defaultEnabled: false},
}

func catalogDefault(id string) bool {
	for _, def := range catalog {
		if def.id == id {
			return def.defaultEnabled
		}
	}
	return false
}
