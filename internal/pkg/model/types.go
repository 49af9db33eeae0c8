package model

// Category says how often a sensor is collected.
type Category string

const (
	// CategoryDynamic sensors are re-sampled every polling cycle.
	CategoryDynamic Category = "dynamic"
	// CategoryStatic sensors are collected once, at registration time.
	CategoryStatic Category = "static"
)

// SensorType is the entity type the hub creates for a sensor.
type SensorType string

func (st SensorType) String() string {
	return string(st)
}

const (
	TypeSensor       SensorType = "sensor"
	TypeBinarySensor SensorType = "binary_sensor"
)

// Device classes understood by the hub for the sensors this agent emits.
const (
	DeviceClassTemperature     = "temperature"
	DeviceClassFrequency       = "frequency"
	DeviceClassDataSize        = "data_size"
	DeviceClassBattery         = "battery"
	DeviceClassBatteryCharging = "battery_charging"
)

// State classes describing how the hub should aggregate a numeric state.
const (
	StateClassMeasurement     = "measurement"
	StateClassTotalIncreasing = "total_increasing"
)
