package models

// Metric types distinguishing the two sensor streams per device.
const (
	MetricWaterLevel = "water_level"
	MetricWasteBin   = "waste_bin"
)

// Severity levels. The aggregation engine only ever emits critical; the
// notification service computes the graduated bands.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is a derived, ephemeral record indicating a metric currently exceeds
// its critical threshold. Never persisted; at most one exists per
// (device, metric) pair.
type Alert struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	DeviceID string `json:"deviceId"`
}

// AlertKey is the map key guaranteeing at most one alert per device/metric.
func AlertKey(deviceID, metric string) string {
	return deviceID + "-" + metric
}
