// Package servo holds the in-memory state of the servo rig: per-channel
// angles, hold flags, the global lock and the speed multiplier. All movement,
// whether it comes from the controller or the web API, goes through a Rig.
package servo

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// NumChannels is the number of servo channels driven by the rig.
	NumChannels = 4

	// MinAngle and MaxAngle bound every stored angle.
	MinAngle = 0
	MaxAngle = 180

	// CenterAngle is the preset used by the center command.
	CenterAngle = 90

	// MinSpeed and MaxSpeed bound the global speed multiplier.
	MinSpeed = 0.1
	MaxSpeed = 2.0

	// slewStep is the largest move, in degrees, a single axis event may
	// produce at speed 1.0.
	slewStep = 15.0
)

var (
	// ErrChannelHeld is returned when a move targets a held channel.
	ErrChannelHeld = errors.New("channel is held")

	// ErrLocked is returned when the rig is globally locked.
	ErrLocked = errors.New("rig is locked")
)

// Direction describes the last movement of a channel or sensor axis.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionLeft    Direction = "left"
	DirectionRight   Direction = "right"
	DirectionNeutral Direction = "neutral"
)

// Sink receives resolved angles and turns them into PWM output. The rig does
// not care whether the sink is a PCA9685 or a simulation.
type Sink interface {
	Write(channel, angle int) error
	StopAll() error
}

// State is a point-in-time snapshot of the rig, safe to serialize.
type State struct {
	Positions  [NumChannels]int       `json:"positions"`
	Directions [NumChannels]Direction `json:"directions"`
	HoldStates [NumChannels]bool      `json:"hold_states"`
	LockState  bool                   `json:"lock_state"`
	Speed      float64                `json:"speed"`
}

// Rig is the servo state machine. All methods are safe for concurrent use;
// the controller loop, the web API and the snapshot logger share one Rig.
type Rig struct {
	mu         sync.Mutex
	positions  [NumChannels]int
	directions [NumChannels]Direction
	holds      [NumChannels]bool
	locked     bool
	speed      float64

	sink Sink
}

// NewRig creates a rig with every channel centered and unheld. Sink errors
// are reported to the caller of the move that triggered them.
func NewRig(sink Sink) *Rig {
	r := Rig{
		sink:  sink,
		speed: 1.0,
	}
	for ch := range r.positions {
		r.positions[ch] = CenterAngle
		r.directions[ch] = DirectionNeutral
	}
	return &r
}

// ClampAngle constrains an angle to [MinAngle, MaxAngle].
func ClampAngle(angle int) int {
	if angle < MinAngle {
		return MinAngle
	}
	if angle > MaxAngle {
		return MaxAngle
	}
	return angle
}

func validChannel(channel int) error {
	if channel < 0 || channel >= NumChannels {
		return fmt.Errorf("unknown channel %d", channel)
	}
	return nil
}

// direction reports how a channel moved. Channels 1 and 2 are mounted
// vertically, 0 and 3 horizontally.
func direction(channel, from, to int) Direction {
	switch {
	case to > from:
		if channel == 1 || channel == 2 {
			return DirectionUp
		}
		return DirectionRight
	case to < from:
		if channel == 1 || channel == 2 {
			return DirectionDown
		}
		return DirectionLeft
	default:
		return DirectionNeutral
	}
}

// set moves one channel without taking the lock; callers hold r.mu.
func (r *Rig) set(channel, angle int) (int, error) {
	angle = ClampAngle(angle)
	r.directions[channel] = direction(channel, r.positions[channel], angle)
	r.positions[channel] = angle

	if err := r.sink.Write(channel, angle); err != nil {
		return angle, fmt.Errorf("writing channel %d: %w", channel, err)
	}
	return angle, nil
}

// Set moves one channel to the given angle, clamped to [0, 180]. It fails
// with ErrChannelHeld or ErrLocked when the channel may not move, and returns
// the angle actually stored.
func (r *Rig) Set(channel, angle int) (int, error) {
	if err := validChannel(channel); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		return r.positions[channel], ErrLocked
	}
	if r.holds[channel] {
		return r.positions[channel], ErrChannelHeld
	}
	return r.set(channel, angle)
}

// SetAll moves every channel that is not held. Held channels are skipped
// silently; a locked rig moves nothing.
func (r *Rig) SetAll(angle int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		return nil
	}

	var errs []error
	for ch := range r.positions {
		if r.holds[ch] {
			continue
		}
		if _, err := r.set(ch, angle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Slew steps a channel toward target, moving at most speed * slewStep degrees.
// Axis events arrive continuously, so the per-event step is what makes the
// speed multiplier observable. Held channels and a locked rig ignore slews.
func (r *Rig) Slew(channel, target int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked || r.holds[channel] {
		return nil
	}

	target = ClampAngle(target)
	step := int(r.speed * slewStep)
	if step < 1 {
		step = 1
	}

	angle := target
	if diff := target - r.positions[channel]; diff > step {
		angle = r.positions[channel] + step
	} else if diff < -step {
		angle = r.positions[channel] - step
	}

	_, err := r.set(channel, angle)
	return err
}

// Center moves all unheld channels to 90 degrees.
func (r *Rig) Center() error {
	return r.SetAll(CenterAngle)
}

// ToggleHold flips the hold flag of one channel and returns the new value.
func (r *Rig) ToggleHold(channel int) (bool, error) {
	if err := validChannel(channel); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.holds[channel] = !r.holds[channel]
	return r.holds[channel], nil
}

// SetHold sets the hold flag of one channel explicitly.
func (r *Rig) SetHold(channel int, hold bool) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.holds[channel] = hold
	return nil
}

// ToggleLock flips the global lock and returns the new value. While locked,
// no command moves any channel.
func (r *Rig) ToggleLock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.locked = !r.locked
	return r.locked
}

// SetLock sets the global lock explicitly.
func (r *Rig) SetLock(locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.locked = locked
}

// AdjustSpeed adds delta to the speed multiplier, clamped to [0.1, 2.0],
// and returns the new value.
func (r *Rig) AdjustSpeed(delta float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.speed += delta
	if r.speed < MinSpeed {
		r.speed = MinSpeed
	}
	if r.speed > MaxSpeed {
		r.speed = MaxSpeed
	}
	return r.speed
}

// Stop turns off PWM output on every channel. State is preserved so the
// dashboard keeps showing the last commanded angles.
func (r *Rig) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sink.StopAll(); err != nil {
		return fmt.Errorf("stopping servos: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current rig state.
func (r *Rig) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return State{
		Positions:  r.positions,
		Directions: r.directions,
		HoldStates: r.holds,
		LockState:  r.locked,
		Speed:      r.speed,
	}
}
