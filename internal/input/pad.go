package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kenshaw/evdev"
)

// ErrNoController is returned when no game controller can be found.
var ErrNoController = errors.New("no game controller found")

// ErrDisconnected is returned when the device stops delivering events.
var ErrDisconnected = errors.New("controller disconnected")

const devicePattern = "/dev/input/event*"

// DeviceInfo describes one input device for --list-devices.
type DeviceInfo struct {
	Path string
	Name string
}

// ListDevices enumerates the evdev devices on the host.
func ListDevices() ([]DeviceInfo, error) {
	paths, err := filepath.Glob(devicePattern)
	if err != nil {
		return nil, fmt.Errorf("scanning input devices: %w", err)
	}
	sort.Strings(paths)

	var devices []DeviceInfo
	for _, path := range paths {
		d, err := evdev.OpenFile(path)
		if err != nil {
			devices = append(devices, DeviceInfo{Path: path, Name: fmt.Sprintf("[error: %s]", err)})
			continue
		}
		devices = append(devices, DeviceInfo{Path: path, Name: d.Name()})
		_ = d.Close()
	}
	return devices, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// controllerType classifies a device name the way the rig reports it.
func controllerType(name string) (string, bool) {
	switch {
	case containsAny(name, "PLAYSTATION(R)3", "PlayStation 3"):
		return "PS3", true
	case containsAny(name, "PLAYSTATION", "PlayStation"):
		return "PS", true
	case containsAny(name, "Xbox", "X-Box"):
		return "Xbox", true
	default:
		return "Generic", false
	}
}

// WithPadLogger sets the logger for a pad.
func WithPadLogger(logger *slog.Logger) func(*Pad) {
	return func(p *Pad) {
		p.logger = logger.With(
			slog.String("component", "input"),
			slog.String("controller", p.typ),
		)
	}
}

// Pad is an opened game controller. Run decodes its events into actions
// until the context is cancelled or the device disappears.
type Pad struct {
	dev    *evdev.Evdev
	path   string
	name   string
	typ    string
	logger *slog.Logger

	dec decoder
}

// Open opens the controller at path, or auto-detects one when path is empty.
// Auto-detection prefers recognizable pads but settles for any event device
// whose name looks like a game controller.
func Open(path string, options ...func(*Pad)) (*Pad, error) {
	if path != "" {
		return openPath(path, options...)
	}

	paths, err := filepath.Glob(devicePattern)
	if err != nil {
		return nil, fmt.Errorf("scanning input devices: %w", err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		d, err := evdev.OpenFile(p)
		if err != nil {
			continue
		}
		if _, known := controllerType(d.Name()); known {
			_ = d.Close()
			return openPath(p, options...)
		}
		_ = d.Close()
	}
	return nil, ErrNoController
}

func openPath(path string, options ...func(*Pad)) (*Pad, error) {
	dev, err := evdev.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening controller %s: %w", path, err)
	}

	name := dev.Name()
	typ, _ := controllerType(name)

	p := Pad{
		dev:    dev,
		path:   path,
		name:   name,
		typ:    typ,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dec:    newDecoder(MappingForDevice(name)),
	}

	// Use the kernel-reported ranges so a 0..255 PS3 stick and a ±32767
	// Xbox stick both land on 0..180.
	for code, info := range dev.AbsoluteTypes() {
		p.dec.setAxisRange(code, int32(info.Min), int32(info.Max))
	}

	for _, option := range options {
		option(&p)
	}
	return &p, nil
}

// Name returns the kernel device name.
func (p *Pad) Name() string { return p.name }

// Path returns the evdev device path.
func (p *Pad) Path() string { return p.path }

// Type returns the reported controller type (PS3, PS, Xbox or Generic).
func (p *Pad) Type() string { return p.typ }

// Close releases the device.
func (p *Pad) Close() error { return p.dev.Close() }

// Run reads events and sends decoded actions until ctx is done. A closed
// event channel means the controller went away; the caller decides whether
// to retry or fall back to web-only control.
func (p *Pad) Run(ctx context.Context, actions chan<- Action) error {
	p.logger.Info("controller connected",
		slog.String("name", p.name),
		slog.String("path", p.path))

	events := p.dev.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok || ev == nil {
				return ErrDisconnected
			}

			action, ok := p.dec.decode(ev.Event.Type, ev.Event.Code, ev.Event.Value)
			if !ok {
				continue
			}

			p.logger.Debug("controller action",
				slog.String("action", action.String()),
				slog.Int("code", int(ev.Event.Code)),
				slog.Int("value", int(ev.Event.Value)))

			select {
			case actions <- action:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// axisRange holds the reported bounds of one absolute axis.
type axisRange struct {
	min int32
	max int32
}

// decoder holds the per-device translation state. It is split from Pad so
// the mapping logic can be exercised without a real device.
type decoder struct {
	mapping   Mapping
	ranges    map[evdev.AbsoluteType]axisRange
	lastKey   map[evdev.KeyType]int32
	exitArmed bool
}

func newDecoder(mapping Mapping) decoder {
	return decoder{
		mapping: mapping,
		ranges:  make(map[evdev.AbsoluteType]axisRange),
		lastKey: make(map[evdev.KeyType]int32),
	}
}

func (d *decoder) setAxisRange(code evdev.AbsoluteType, min, max int32) {
	if min < max {
		d.ranges[code] = axisRange{min: min, max: max}
	}
}

// scaleAxis rescales a raw axis value onto 0..180 degrees.
func (d *decoder) scaleAxis(code evdev.AbsoluteType, value int32) int {
	r, ok := d.ranges[code]
	if !ok {
		r = axisRange{min: -32767, max: 32767}
	}
	if value < r.min {
		value = r.min
	}
	if value > r.max {
		value = r.max
	}
	return int(int64(value-r.min) * 180 / int64(r.max-r.min))
}

// decode translates one raw event. The bool result is false for events that
// map to nothing: unknown codes, button releases, autorepeat.
func (d *decoder) decode(typ evdev.EventType, code uint16, value int32) (Action, bool) {
	switch typ {
	case evdev.EventAbsolute:
		axis := evdev.AbsoluteType(code)
		channel, ok := d.mapping.Axes[axis]
		if !ok {
			return Action{}, false
		}
		return Action{Kind: ActionSlew, Channel: channel, Angle: d.scaleAxis(axis, value)}, true

	case evdev.EventKey:
		key := evdev.KeyType(code)
		prev := d.lastKey[key]
		d.lastKey[key] = value

		// Edge-triggered: act only on the 0→1 transition so a held
		// button does not repeat-fire.
		if value != 1 || prev != 0 {
			return Action{}, false
		}

		if key == d.mapping.Exit {
			if d.exitArmed {
				return Action{Kind: ActionExit}, true
			}
			d.exitArmed = true
			return Action{}, false
		}
		d.exitArmed = false

		action, ok := d.mapping.Buttons[key]
		return action, ok

	default:
		return Action{}, false
	}
}
