package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/codeddarkness/controller-new/cmd/servod/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	var opts app.Options
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.BoolVar(&opts.WebOnly, "web-only", false, "Run without a game controller")
	flag.StringVar(&opts.Device, "device", "", "Input device path, e.g. /dev/input/event0")
	flag.BoolVar(&opts.ListDevices, "list-devices", false, "List input devices and exit")
	flag.BoolVar(&opts.TestController, "test-controller", false, "Print decoded controller actions and exit")
	flag.BoolVar(&opts.TestHardware, "test-hardware", false, "Probe the I2C buses, report and exit")
	flag.Parse()

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, opts, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
