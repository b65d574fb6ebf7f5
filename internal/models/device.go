package models

import "time"

// DefaultThreshold is the per-device configurable cutoff applied when a
// device has no thresholds of its own.
const DefaultThreshold = 80.0

// Thresholds are the configurable per-device notification cutoffs, in percent.
type Thresholds struct {
	WaterLevel  float64 `json:"waterLevel"`
	BinFullness float64 `json:"binFullness"`
}

// Device represents one registered sensor unit monitoring a drainage point.
// Lifecycle status (active/inactive) is derived from LastSeen, never stored.
type Device struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Location    string     `json:"location,omitempty"`
	WaterLevel  float64    `json:"waterLevel,omitempty"`
	BinFullness float64    `json:"binFullness,omitempty"`
	BinWeight   float64    `json:"binWeight,omitempty"`
	LastSeen    string     `json:"lastSeen,omitempty"`
	Thresholds  Thresholds `json:"thresholds,omitempty"`
}

// DisplayName returns the device name, falling back to its id.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// WaterThreshold returns the configured water-level cutoff or the default.
func (d Device) WaterThreshold() float64 {
	if d.Thresholds.WaterLevel > 0 {
		return d.Thresholds.WaterLevel
	}
	return DefaultThreshold
}

// BinThreshold returns the configured bin-fullness cutoff or the default.
func (d Device) BinThreshold() float64 {
	if d.Thresholds.BinFullness > 0 {
		return d.Thresholds.BinFullness
	}
	return DefaultThreshold
}

// Active reports whether the device has been seen within the window.
func (d Device) Active(now time.Time, window time.Duration) bool {
	if d.LastSeen == "" {
		return false
	}
	seen, err := time.Parse(time.RFC3339, d.LastSeen)
	if err != nil {
		return false
	}
	return now.Sub(seen) <= window
}
