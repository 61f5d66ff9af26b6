package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/codeddarkness/controller-new/internal/input"
	"github.com/codeddarkness/controller-new/internal/servo"
)

// reconnectDelay is how long to wait before scanning for a controller again
// after an open failure or a disconnect.
const reconnectDelay = 2 * time.Second

// controllerLoop owns the game controller: it opens the device, feeds its
// actions into the rig and reopens after a disconnect. The daemon keeps
// running on the web interface alone while no controller is attached.
type controllerLoop struct {
	devicePath string
	rig        *servo.Rig
	exit       context.CancelFunc
	logger     *slog.Logger

	// onFirstConnect runs once, when the first pad attaches; the daemon
	// uses it to amend the session row created before discovery.
	onFirstConnect func(padType string)

	mu            sync.Mutex
	connected     bool
	padType       string
	everConnected bool
}

func newControllerLoop(devicePath string, rig *servo.Rig, exit context.CancelFunc, logger *slog.Logger) *controllerLoop {
	return &controllerLoop{
		devicePath: devicePath,
		rig:        rig,
		exit:       exit,
		logger:     logger.With(slog.String("component", "controller")),
		padType:    "none",
	}
}

// status reports whether a controller is currently attached and its type.
func (c *controllerLoop) status() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected, c.padType
}

func (c *controllerLoop) setStatus(connected bool, padType string) {
	c.mu.Lock()
	c.connected = connected
	c.padType = padType
	first := connected && !c.everConnected
	if first {
		c.everConnected = true
	}
	c.mu.Unlock()

	if first && c.onFirstConnect != nil {
		c.onFirstConnect(padType)
	}
}

// run keeps a controller session alive until the context is cancelled.
func (c *controllerLoop) run(ctx context.Context) {
	for {
		if err := c.session(ctx); err != nil {
			switch {
			case errors.Is(err, input.ErrNoController):
				c.logger.Debug("no controller found, retrying")
			case errors.Is(err, input.ErrDisconnected):
				c.logger.Warn("controller disconnected")
			default:
				c.logger.Error("controller session failed", slog.String("error", err.Error()))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// session opens one controller and pumps its actions until it disconnects.
func (c *controllerLoop) session(ctx context.Context) error {
	pad, err := input.Open(c.devicePath, input.WithPadLogger(c.logger))
	if err != nil {
		return err
	}
	defer pad.Close()

	c.logger.Info("controller connected",
		slog.String("name", pad.Name()),
		slog.String("path", pad.Path()),
		slog.String("type", pad.Type()))
	c.setStatus(true, pad.Type())
	defer c.setStatus(false, "none")

	actions := make(chan input.Action)
	errCh := make(chan error, 1)
	go func() {
		errCh <- pad.Run(ctx, actions)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case action := <-actions:
			c.apply(action)
		}
	}
}

// apply executes one decoded action against the rig. Hold and lock
// rejections are expected during normal use and logged at debug only.
func (c *controllerLoop) apply(action input.Action) {
	var err error
	switch action.Kind {
	case input.ActionSlew:
		err = c.rig.Slew(action.Channel, action.Angle)
	case input.ActionToggleHold:
		var held bool
		if held, err = c.rig.ToggleHold(action.Channel); err == nil {
			c.logger.Info("hold toggled", slog.Int("channel", action.Channel), slog.Bool("held", held))
		}
	case input.ActionSetAll:
		err = c.rig.SetAll(action.Angle)
	case input.ActionToggleLock:
		locked := c.rig.ToggleLock()
		c.logger.Info("lock toggled", slog.Bool("locked", locked))
	case input.ActionAdjustSpeed:
		speed := c.rig.AdjustSpeed(action.Delta)
		c.logger.Info("speed adjusted", slog.Float64("speed", speed))
	case input.ActionExit:
		c.logger.Info("exit requested from controller")
		c.exit()
	}

	if err != nil {
		if errors.Is(err, servo.ErrChannelHeld) || errors.Is(err, servo.ErrLocked) {
			c.logger.Debug("action rejected", slog.String("action", action.String()), slog.String("reason", err.Error()))
			return
		}
		c.logger.Error("action failed", slog.String("action", action.String()), slog.String("error", err.Error()))
	}
}
