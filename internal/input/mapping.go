package input

import (
	"github.com/kenshaw/evdev"
)

// Mapping translates one controller model's raw event codes into actions.
// Use evtest on linux to figure out what maps to what.
type Mapping struct {
	Name string

	// Axes maps absolute axis codes to servo channels.
	Axes map[evdev.AbsoluteType]int

	// Buttons maps key codes to actions, applied on the 0→1 edge.
	Buttons map[evdev.KeyType]Action

	// Exit is the double-press shutdown button.
	Exit evdev.KeyType
}

// PS3Mapping covers the PLAYSTATION(R)3 pad. Codes were captured with the
// original rig's controller test log.
var PS3Mapping = Mapping{
	Name: "PS3",
	Axes: map[evdev.AbsoluteType]int{
		0: 0, // left stick X
		1: 1, // left stick Y
		2: 2, // right stick X
		3: 3, // right stick Y
	},
	Buttons: map[evdev.KeyType]Action{
		304: {Kind: ActionToggleHold, Channel: 0},   // cross
		305: {Kind: ActionToggleHold, Channel: 1},   // circle
		308: {Kind: ActionToggleHold, Channel: 2},   // square
		307: {Kind: ActionToggleHold, Channel: 3},   // triangle
		294: {Kind: ActionAdjustSpeed, Delta: -0.1}, // L1
		295: {Kind: ActionAdjustSpeed, Delta: 0.1},  // R1
		298: {Kind: ActionSetAll, Angle: 0},         // L2
		299: {Kind: ActionSetAll, Angle: 180},       // R2
		291: {Kind: ActionSetAll, Angle: 90},        // start
		300: {Kind: ActionSetAll, Angle: 90},        // d-pad up
		302: {Kind: ActionToggleLock},               // d-pad down
		303: {Kind: ActionSetAll, Angle: 0},         // d-pad left
		301: {Kind: ActionSetAll, Angle: 180},       // d-pad right
	},
	Exit: 292, // PS button
}

// XboxMapping covers Xbox pads and is the fallback for generic controllers.
// The right stick is reported on axes 4/5 and arrives swapped relative to
// the PS3 pad.
var XboxMapping = Mapping{
	Name: "Xbox",
	Axes: map[evdev.AbsoluteType]int{
		0: 0, // left stick X
		1: 1, // left stick Y
		4: 2, // right stick Y
		5: 3, // right stick X
	},
	Buttons: map[evdev.KeyType]Action{
		304: {Kind: ActionToggleHold, Channel: 0},   // A
		305: {Kind: ActionToggleHold, Channel: 1},   // B
		308: {Kind: ActionToggleHold, Channel: 2},   // X
		307: {Kind: ActionToggleHold, Channel: 3},   // Y
		310: {Kind: ActionAdjustSpeed, Delta: -0.1}, // left shoulder
		311: {Kind: ActionAdjustSpeed, Delta: 0.1},  // right shoulder
		544: {Kind: ActionSetAll, Angle: 90},        // d-pad up
		545: {Kind: ActionToggleLock},               // d-pad down
		546: {Kind: ActionSetAll, Angle: 0},         // d-pad left
		547: {Kind: ActionSetAll, Angle: 180},       // d-pad right
	},
	Exit: 16, // Q on the chatpad
}

// MappingForDevice picks the mapping by device name. PlayStation pads get
// the PS3 table; everything else behaves like an Xbox pad.
func MappingForDevice(name string) Mapping {
	if containsAny(name, "PLAYSTATION", "PlayStation") {
		return PS3Mapping
	}
	return XboxMapping
}
