package models

// WaterLevelEntry is one timestamped water-level measurement, appended to a
// device's history and never mutated.
type WaterLevelEntry struct {
	Level     float64 `json:"level"`
	Timestamp string  `json:"timestamp"`
}

// WasteBinEntry is one timestamped waste-bin measurement.
type WasteBinEntry struct {
	Fullness  float64 `json:"fullness"`
	Weight    float64 `json:"weight"`
	Timestamp string  `json:"timestamp"`
}

// SensorReading is the inbound payload shape shared by the HTTP endpoint and
// the kafka/mqtt bridges. Nil fields were not reported by the sensor.
type SensorReading struct {
	DeviceID    string   `json:"device_id"`
	WaterLevel  *float64 `json:"water_level,omitempty"`
	BinFullness *float64 `json:"bin_fullness,omitempty"`
	BinWeight   *float64 `json:"bin_weight,omitempty"`
}
