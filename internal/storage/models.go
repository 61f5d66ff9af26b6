package storage

import (
	"time"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/telemetry"
)

// Session is one daemon run.
type Session struct {
	ID             int64     `json:"id"`
	StartTime      time.Time `json:"start_time"`
	ControllerType string    `json:"controller_type"`
	Config         *string   `json:"config,omitempty"`
}

// Snapshot is one periodic record of the whole rig: servo state, sensor
// reading and hardware connectivity. Append-only.
type Snapshot struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	Servos  servo.State       `json:"servo_data"`
	Reading telemetry.Reading `json:"mpu_data"`

	Hardware            hardware.Status `json:"hardware_status"`
	ControllerConnected bool            `json:"controller_connected"`
	ControllerType      string          `json:"controller_type"`
}

// columns flattens a snapshot into insert arguments, matching the column
// order of insertSnapshotSQL.
func (s *Snapshot) columns() []any {
	return []any{
		s.SessionID,
		s.Timestamp.UTC(),
		s.Servos.Positions[0], s.Servos.Positions[1], s.Servos.Positions[2], s.Servos.Positions[3],
		string(s.Servos.Directions[0]), string(s.Servos.Directions[1]),
		string(s.Servos.Directions[2]), string(s.Servos.Directions[3]),
		s.Servos.HoldStates[0], s.Servos.HoldStates[1], s.Servos.HoldStates[2], s.Servos.HoldStates[3],
		s.Servos.LockState,
		s.Servos.Speed,
		s.Reading.Accel.X, s.Reading.Accel.Y, s.Reading.Accel.Z,
		s.Reading.Gyro.X, s.Reading.Gyro.Y, s.Reading.Gyro.Z,
		s.Reading.Temperature,
		s.Hardware.PCAConnected,
		s.Hardware.PCABus,
		s.Hardware.MPUConnected,
		s.Hardware.MPUBus,
		s.ControllerConnected,
		s.ControllerType,
	}
}

// scanTargets returns pointers in the column order of the snapshot SELECTs.
func (s *Snapshot) scanTargets() []any {
	return []any{
		&s.ID,
		&s.SessionID,
		&s.Timestamp,
		&s.Servos.Positions[0], &s.Servos.Positions[1], &s.Servos.Positions[2], &s.Servos.Positions[3],
		&s.Servos.Directions[0], &s.Servos.Directions[1], &s.Servos.Directions[2], &s.Servos.Directions[3],
		&s.Servos.HoldStates[0], &s.Servos.HoldStates[1], &s.Servos.HoldStates[2], &s.Servos.HoldStates[3],
		&s.Servos.LockState,
		&s.Servos.Speed,
		&s.Reading.Accel.X, &s.Reading.Accel.Y, &s.Reading.Accel.Z,
		&s.Reading.Gyro.X, &s.Reading.Gyro.Y, &s.Reading.Gyro.Z,
		&s.Reading.Temperature,
		&s.Hardware.PCAConnected,
		&s.Hardware.PCABus,
		&s.Hardware.MPUConnected,
		&s.Hardware.MPUBus,
		&s.ControllerConnected,
		&s.ControllerType,
	}
}
