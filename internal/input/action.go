// Package input turns game controller events into rig actions. Mapping
// tables are static per controller model; unrecognized event codes are
// ignored without error.
package input

import "fmt"

// Kind enumerates the logical actions a controller can request.
type Kind int

const (
	// ActionNone is an event that maps to nothing.
	ActionNone Kind = iota

	// ActionSlew moves one channel toward the axis target angle.
	ActionSlew

	// ActionToggleHold flips one channel's hold flag.
	ActionToggleHold

	// ActionSetAll moves all unheld channels to a preset angle.
	ActionSetAll

	// ActionToggleLock flips the global lock.
	ActionToggleLock

	// ActionAdjustSpeed changes the speed multiplier by Delta.
	ActionAdjustSpeed

	// ActionExit requests daemon shutdown (after the confirm press).
	ActionExit
)

// Action is a decoded controller command.
type Action struct {
	Kind    Kind
	Channel int
	Angle   int
	Delta   float64
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSlew:
		return fmt.Sprintf("slew channel %d to %d", a.Channel, a.Angle)
	case ActionToggleHold:
		return fmt.Sprintf("toggle hold on channel %d", a.Channel)
	case ActionSetAll:
		return fmt.Sprintf("set all channels to %d", a.Angle)
	case ActionToggleLock:
		return "toggle lock"
	case ActionAdjustSpeed:
		return fmt.Sprintf("adjust speed by %+.1f", a.Delta)
	case ActionExit:
		return "exit"
	default:
		return "none"
	}
}
