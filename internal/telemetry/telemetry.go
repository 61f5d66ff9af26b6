// Package telemetry models the MPU6050 readings and keeps the latest sample
// available to the web façade and the snapshot logger.
package telemetry

import (
	"time"
)

// Gravity is standard gravity in m/s², used to classify the z axis.
const Gravity = 9.8

// motionThreshold is the acceleration, in m/s², below which an axis is
// reported as neutral.
const motionThreshold = 0.5

// Provider supplies the current sensor reading. Implementations are the
// MPU6050 driver and the simulator.
type Provider interface {
	Get() Reading
}

// Vector is a three axis measurement.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AxisDirections labels per-axis motion for the dashboard.
type AxisDirections struct {
	X string `json:"x"`
	Y string `json:"y"`
	Z string `json:"z"`
}

// Reading is one sensor sample. Acceleration is in m/s², angular rate in
// °/s, temperature in °C.
type Reading struct {
	Timestamp   time.Time      `json:"timestamp"`
	Accel       Vector         `json:"accel"`
	Gyro        Vector         `json:"gyro"`
	Temperature float64        `json:"temp"`
	Direction   AxisDirections `json:"direction"`
}

// Classify fills in the direction labels from the acceleration vector.
// The z axis is compared against gravity so a board at rest reads neutral.
func (r *Reading) Classify() {
	r.Direction = AxisDirections{
		X: classify(r.Accel.X, 0, "right", "left"),
		Y: classify(r.Accel.Y, 0, "up", "down"),
		Z: classify(r.Accel.Z, Gravity, "up", "down"),
	}
}

func classify(v, base float64, above, below string) string {
	switch {
	case v > base+motionThreshold:
		return above
	case v < base-motionThreshold:
		return below
	default:
		return "neutral"
	}
}
