package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"

	"github.com/codeddarkness/controller-new/internal/servo"
)

// PCA9685 drives servo channels through the PWM board. The 12-bit counter
// runs at 50Hz, so ticks 150..600 span the usual 0..180 degree pulse range.
type PCA9685 struct {
	mu  sync.Mutex
	dev *pca9685.Dev

	minPulse int
	maxPulse int
}

// NewPCA9685 initializes the board on the given bus. Failure to answer on
// the address means the board is not on this bus.
func NewPCA9685(bus i2c.Bus, config Config) (*PCA9685, error) {
	dev, err := pca9685.NewI2C(bus, config.PCAAddress)
	if err != nil {
		return nil, fmt.Errorf("initializing PCA9685 at %#x: %w", config.PCAAddress, err)
	}

	if err = dev.SetPwmFreq(physic.Frequency(config.PWMFreqHz) * physic.Hertz); err != nil {
		return nil, fmt.Errorf("setting PWM frequency: %w", err)
	}

	return &PCA9685{
		dev:      dev,
		minPulse: config.MinPulse,
		maxPulse: config.MaxPulse,
	}, nil
}

// PulseForAngle converts a servo angle into a PWM off-tick count.
func PulseForAngle(angle, minPulse, maxPulse int) int {
	angle = servo.ClampAngle(angle)
	return minPulse + angle*(maxPulse-minPulse)/servo.MaxAngle
}

// Write sets one channel's pulse width.
func (p *PCA9685) Write(channel, angle int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pulse := PulseForAngle(angle, p.minPulse, p.maxPulse)
	if err := p.dev.SetPwm(channel, 0, gpio.Duty(pulse)); err != nil {
		return fmt.Errorf("setting channel %d pulse: %w", channel, err)
	}
	return nil
}

// StopAll turns off PWM output on every channel.
func (p *PCA9685) StopAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.dev.SetAllPwm(0, 0); err != nil {
		return fmt.Errorf("stopping all channels: %w", err)
	}
	return nil
}
