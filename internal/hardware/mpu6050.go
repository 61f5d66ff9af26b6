package hardware

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/codeddarkness/controller-new/internal/telemetry"
)

// MPU6050 register map, datasheet section 4.
const (
	mpuRegPowerMgmt1 = 0x6B
	mpuRegAccelXOutH = 0x3B
	mpuRegWhoAmI     = 0x75

	mpuWhoAmIValue = 0x68

	// Scale factors for the default full-scale ranges: ±2g and ±250°/s.
	accelLSBPerG     = 16384.0
	gyroLSBPerDegSec = 131.0
	gravityMS2       = 9.80665
)

// MPU6050 reads acceleration, angular rate and temperature over I2C.
// It satisfies telemetry.Provider.
type MPU6050 struct {
	mu   sync.Mutex
	dev  i2c.Dev
	last telemetry.Reading
}

// NewMPU6050 wakes the sensor and verifies its identity. An error means no
// sensor is listening at the address on this bus.
func NewMPU6050(bus i2c.Bus, addr uint16) (*MPU6050, error) {
	dev := i2c.Dev{Bus: bus, Addr: addr}

	var who [1]byte
	if err := dev.Tx([]byte{mpuRegWhoAmI}, who[:]); err != nil {
		return nil, fmt.Errorf("reading WHO_AM_I: %w", err)
	}
	if who[0] != mpuWhoAmIValue {
		return nil, fmt.Errorf("unexpected WHO_AM_I value %#x", who[0])
	}

	// Clear the sleep bit; the sensor powers up asleep.
	if err := dev.Tx([]byte{mpuRegPowerMgmt1, 0x00}, nil); err != nil {
		return nil, fmt.Errorf("waking sensor: %w", err)
	}

	return &MPU6050{dev: dev}, nil
}

// Get performs a 14-byte burst read covering accelerometer, temperature and
// gyroscope registers. On a transient bus error the previous reading is
// returned so the poller keeps serving data.
func (m *MPU6050) Get() telemetry.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf [14]byte
	if err := m.dev.Tx([]byte{mpuRegAccelXOutH}, buf[:]); err != nil {
		return m.last
	}

	m.last = decodeReading(buf[:], time.Now())
	return m.last
}

func decodeReading(buf []byte, now time.Time) telemetry.Reading {
	word := func(i int) int16 {
		return int16(uint16(buf[i])<<8 | uint16(buf[i+1]))
	}

	r := telemetry.Reading{
		Timestamp: now,
		Accel: telemetry.Vector{
			X: float64(word(0)) / accelLSBPerG * gravityMS2,
			Y: float64(word(2)) / accelLSBPerG * gravityMS2,
			Z: float64(word(4)) / accelLSBPerG * gravityMS2,
		},
		Temperature: float64(word(6))/340.0 + 36.53,
		Gyro: telemetry.Vector{
			X: float64(word(8)) / gyroLSBPerDegSec,
			Y: float64(word(10)) / gyroLSBPerDegSec,
			Z: float64(word(12)) / gyroLSBPerDegSec,
		},
	}
	r.Classify()
	return r
}
