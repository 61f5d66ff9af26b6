package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/input"
	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/storage"
	"github.com/codeddarkness/controller-new/internal/telemetry"
	"github.com/codeddarkness/controller-new/internal/web"
)

// Options are the command line switches that modify a run.
type Options struct {
	// WebOnly skips the game controller entirely.
	WebOnly bool

	// Device overrides the configured evdev node.
	Device string

	// ListDevices prints the input devices and exits.
	ListDevices bool

	// TestController prints decoded controller actions without driving
	// the servos.
	TestController bool

	// TestHardware probes the I2C buses, reports what it found and exits.
	TestHardware bool
}

func Run(ctx context.Context, config *Config, opts Options, logger *slog.Logger) error {
	if opts.ListDevices {
		return listDevices(os.Stdout)
	}

	devices := hardware.Probe(config.Hardware, logger)
	defer devices.Close()

	if opts.TestHardware {
		return reportHardware(os.Stdout, devices.Status())
	}

	devicePath := config.Input.Device
	if opts.Device != "" {
		devicePath = opts.Device
	}

	if opts.TestController {
		return testController(ctx, devicePath, logger)
	}

	rig := servo.NewRig(devices.Sink)
	defer func() {
		if err := rig.Stop(); err != nil {
			logger.Warn("stopping PWM output", slog.String("error", err.Error()))
		}
	}()

	poller := telemetry.NewPoller(devices.Telemetry,
		telemetry.WithInterval(config.Telemetry.Interval()),
		telemetry.WithLogger(logger))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var controller *controllerLoop
	if !opts.WebOnly {
		controller = newControllerLoop(devicePath, rig, cancel, logger)
	}

	var store *storage.Store
	var rec *recorder
	if config.Storage.Path != "" {
		store = storage.New(config.Storage.Path)
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing storage", slog.String("error", err.Error()))
			}
		}()

		// The session row starts as "none"; discovery has not run yet.
		// The controller loop amends it when the first pad attaches.
		sessionID, err := store.CreateSession("none", config)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		if controller != nil {
			controller.onFirstConnect = func(padType string) {
				if err := store.SetSessionController(sessionID, padType); err != nil {
					logger.Warn("recording controller type", slog.String("error", err.Error()))
				}
			}
		}
		rec = newRecorder(store, sessionID, rig, poller, devices, controller, config.Storage, logger)
	}

	status := func() (bool, string) {
		if controller == nil {
			return false, "none"
		}
		return controller.status()
	}

	var snapshots web.SnapshotSource
	if store != nil {
		snapshots = store
	}
	server := web.NewServer(rig, poller, snapshots, devices.Status(), status, logger)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	if controller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			controller.run(ctx)
		}()
	}

	if rec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx, config.Web); err != nil {
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func listDevices(w *os.File) error {
	devices, err := input.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no input devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\n", d.Path, d.Name)
	}
	return nil
}

func reportHardware(w *os.File, status hardware.Status) error {
	if status.PCAConnected {
		fmt.Fprintf(w, "PCA9685: connected on bus %s\n", status.PCABus)
	} else {
		fmt.Fprintln(w, "PCA9685: not found, servo writes are simulated")
	}
	if status.MPUConnected {
		fmt.Fprintf(w, "MPU6050: connected on bus %s\n", status.MPUBus)
	} else {
		fmt.Fprintln(w, "MPU6050: not found, sensor data is simulated")
	}
	return nil
}

// testController echoes decoded actions until the context is cancelled or
// the controller requests exit.
func testController(ctx context.Context, devicePath string, logger *slog.Logger) error {
	pad, err := input.Open(devicePath, input.WithPadLogger(logger))
	if err != nil {
		return fmt.Errorf("opening controller: %w", err)
	}
	defer pad.Close()

	fmt.Printf("reading %s (%s), press buttons to see actions\n", pad.Name(), pad.Path())

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
			if errors.Is(err, input.ErrDisconnected) {
				return nil
			}
			return err
		case action := <-actions:
			fmt.Println(action)
			if action.Kind == input.ActionExit {
				return nil
			}
		}
	}
}
