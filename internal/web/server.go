// Package web serves the dashboard and the JSON control API. The dashboard
// is a static page that polls /api/status; every mutation goes through the
// same rig the game controller drives.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/storage"
	"github.com/codeddarkness/controller-new/internal/telemetry"
)

//go:embed static
var staticFiles embed.FS

// TelemetrySource supplies the latest sensor reading.
type TelemetrySource interface {
	Latest() telemetry.Reading
}

// SnapshotSource supplies recent log records.
type SnapshotSource interface {
	RecentSnapshots(limit int) ([]storage.Snapshot, error)
}

// ControllerStatusFunc reports whether a game controller is attached and
// what kind it is. It is a function because the controller can come and go
// while the server runs.
type ControllerStatusFunc func() (connected bool, controllerType string)

// Config holds the listen address.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultConfig listens on all interfaces at the port the dashboard expects.
func DefaultConfig() Config {
	return Config{Host: "0.0.0.0", Port: 5000}
}

// Server is the HTTP façade over the rig.
type Server struct {
	rig        *servo.Rig
	telemetry  TelemetrySource
	snapshots  SnapshotSource
	hw         hardware.Status
	controller ControllerStatusFunc

	logger  *slog.Logger
	started time.Time
	mux     *http.ServeMux
}

// NewServer wires the handlers. snapshots may be nil when logging is
// disabled; /api/logs then returns an empty list.
func NewServer(
	rig *servo.Rig,
	source TelemetrySource,
	snapshots SnapshotSource,
	hw hardware.Status,
	controller ControllerStatusFunc,
	logger *slog.Logger,
) *Server {
	s := Server{
		rig:        rig,
		telemetry:  source,
		snapshots:  snapshots,
		hw:         hw,
		controller: controller,
		logger:     logger.With(slog.String("component", "web")),
		started:    time.Now(),
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/servo/all", s.handleSetAll)
	s.mux.HandleFunc("POST /api/servo/hold/{channel}", s.handleHold)
	s.mux.HandleFunc("POST /api/servo/lock", s.handleLock)
	s.mux.HandleFunc("POST /api/servo/{channel}", s.handleSetServo)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
	s.mux.HandleFunc("GET /api/logs", s.handleLogs)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded dashboard missing: %s", err))
	}
	s.mux.Handle("GET /", http.FileServerFS(static))

	return &s
}

// Handler exposes the routing table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, config Config) error {
	addr := net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port))
	srv := http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web interface listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down web server: %w", err)
		}
		return nil

	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	}
}
