// Package hardware probes the I2C buses for the PCA9685 PWM board and the
// MPU6050 sensor, and degrades to simulation when either is missing. The
// daemon keeps running in disconnected mode rather than crashing.
package hardware

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/telemetry"
)

// Config selects the buses to probe and the device parameters.
type Config struct {
	Buses      []string `yaml:"buses"`
	PCAAddress uint16   `yaml:"pcaAddress"`
	MPUAddress uint16   `yaml:"mpuAddress"`
	MinPulse   int      `yaml:"minPulse"`
	MaxPulse   int      `yaml:"maxPulse"`
	PWMFreqHz  int      `yaml:"pwmFreqHz"`
}

// DefaultConfig matches the board this rig was built around: both Pi buses,
// standard addresses, 50Hz servo pulses between ticks 150 and 600.
func DefaultConfig() Config {
	return Config{
		Buses:      []string{"0", "1"},
		PCAAddress: 0x40,
		MPUAddress: 0x68,
		MinPulse:   150,
		MaxPulse:   600,
		PWMFreqHz:  50,
	}
}

// Status reports what the probe found, for /api/status and --test-hardware.
type Status struct {
	PCAConnected bool   `json:"pca_connected"`
	PCABus       string `json:"pca_bus"`
	MPUConnected bool   `json:"mpu_connected"`
	MPUBus       string `json:"mpu_bus"`
}

// Devices bundles whatever the probe produced: real drivers where hardware
// answered, simulations elsewhere.
type Devices struct {
	Sink      servo.Sink
	Telemetry telemetry.Provider

	status Status

	mu     sync.Mutex
	closed bool
	buses  []i2c.BusCloser
}

var hostInitOnce sync.Once
var hostInitErr error

func initHost() error {
	hostInitOnce.Do(func() {
		_, hostInitErr = host.Init()
	})
	return hostInitErr
}

// Probe walks the configured I2C buses looking for the PCA9685 and the
// MPU6050. It never fails: anything not found is replaced by a simulation
// and reported as disconnected.
func Probe(config Config, logger *slog.Logger) *Devices {
	logger = logger.With(slog.String("component", "hardware"))

	d := Devices{
		Sink:      NewSimulatedSink(),
		Telemetry: telemetry.NewSimulator(),
	}

	if err := initHost(); err != nil {
		logger.Warn(fmt.Sprintf("periph host init failed, running in simulation mode: %s", err))
		return &d
	}

	for _, busName := range config.Buses {
		if d.status.PCAConnected && d.status.MPUConnected {
			break
		}

		bus, err := i2creg.Open(busName)
		if err != nil {
			logger.Warn(fmt.Sprintf("opening I2C bus %s: %s", busName, err))
			continue
		}

		used := false
		if !d.status.PCAConnected {
			sink, err := NewPCA9685(bus, config)
			if err != nil {
				logger.Warn(fmt.Sprintf("PCA9685 not found on I2C bus %s: %s", busName, err))
			} else {
				d.Sink = sink
				d.status.PCAConnected = true
				d.status.PCABus = busName
				used = true
				logger.Info("PCA9685 found", slog.String("bus", busName))
			}
		}

		if !d.status.MPUConnected {
			mpu, err := NewMPU6050(bus, config.MPUAddress)
			if err != nil {
				logger.Warn(fmt.Sprintf("MPU6050 not found on I2C bus %s: %s", busName, err))
			} else {
				d.Telemetry = mpu
				d.status.MPUConnected = true
				d.status.MPUBus = busName
				used = true
				logger.Info("MPU6050 found", slog.String("bus", busName))
			}
		}

		if used {
			d.buses = append(d.buses, bus)
		} else if err = bus.Close(); err != nil {
			logger.Warn(fmt.Sprintf("closing I2C bus %s: %s", busName, err))
		}
	}

	if !d.status.PCAConnected {
		logger.Warn("no PCA9685 found, servo output is simulated")
	}
	if !d.status.MPUConnected {
		logger.Warn("no MPU6050 found, telemetry is simulated")
	}

	return &d
}

// Status returns the connectivity flags from the probe.
func (d *Devices) Status() Status {
	return d.status
}

// Close releases the I2C buses held by real devices.
func (d *Devices) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var err error
	for _, bus := range d.buses {
		if cErr := bus.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing I2C bus: %w", cErr)
		}
	}
	return err
}
