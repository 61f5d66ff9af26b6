package telemetry

import (
	"math"
	"time"
)

// Simulator generates plausible sensor readings when no MPU6050 is present.
// The waveforms match what the hardware produces on a gently rocking bench,
// so the dashboard stays alive in disconnected mode.
type Simulator struct {
	start time.Time
}

// NewSimulator returns a simulated telemetry provider.
func NewSimulator() *Simulator {
	return &Simulator{start: time.Now()}
}

// Get returns the simulated reading for the current instant.
func (s *Simulator) Get() Reading {
	t := time.Since(s.start).Seconds()

	r := Reading{
		Timestamp: time.Now(),
		Accel: Vector{
			X: math.Sin(t*0.5) * 0.5,
			Y: math.Cos(t*0.7) * 0.5,
			Z: Gravity + math.Sin(t*0.3)*0.2,
		},
		Gyro: Vector{
			X: math.Sin(t*0.2) * 2,
			Y: math.Cos(t*0.4) * 2,
			Z: math.Sin(t*0.6) * 2,
		},
		Temperature: 25 + math.Sin(t*0.1)*0.5,
	}
	r.Classify()
	return r
}
