package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/storage"
	"github.com/codeddarkness/controller-new/internal/telemetry"
)

// recorder periodically captures the rig, sensor and hardware state into a
// snapshot and flushes batches of them to the store. A final flush happens
// on shutdown so the tail of a session is never lost.
type recorder struct {
	store     *storage.Store
	sessionID int64

	rig        *servo.Rig
	poller     *telemetry.Poller
	devices    *hardware.Devices
	controller *controllerLoop

	interval     time.Duration
	maxBatchSize int
	logger       *slog.Logger

	pending []storage.Snapshot
}

func newRecorder(
	store *storage.Store,
	sessionID int64,
	rig *servo.Rig,
	poller *telemetry.Poller,
	devices *hardware.Devices,
	controller *controllerLoop,
	config StorageConfig,
	logger *slog.Logger,
) *recorder {
	interval := config.Interval()
	if interval <= 0 {
		interval = time.Second
	}
	maxBatchSize := config.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = 1
	}

	return &recorder{
		store:        store,
		sessionID:    sessionID,
		rig:          rig,
		poller:       poller,
		devices:      devices,
		controller:   controller,
		interval:     interval,
		maxBatchSize: maxBatchSize,
		logger:       logger.With(slog.String("component", "recorder")),
	}
}

// run records until the context is cancelled, then flushes what is pending.
func (r *recorder) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case now := <-ticker.C:
			r.capture(now)
			if len(r.pending) >= r.maxBatchSize {
				r.flush()
			}
		}
	}
}

func (r *recorder) capture(now time.Time) {
	connected, padType := false, "none"
	if r.controller != nil {
		connected, padType = r.controller.status()
	}

	r.pending = append(r.pending, storage.Snapshot{
		SessionID:           r.sessionID,
		Timestamp:           now,
		Servos:              r.rig.Snapshot(),
		Reading:             r.poller.Latest(),
		Hardware:            r.devices.Status(),
		ControllerConnected: connected,
		ControllerType:      padType,
	})
}

func (r *recorder) flush() {
	if len(r.pending) == 0 {
		return
	}
	if err := r.store.BatchInsertSnapshots(r.pending); err != nil {
		r.logger.Error("writing snapshots", slog.String("error", err.Error()), slog.Int("count", len(r.pending)))
	}
	r.pending = r.pending[:0]
}
