package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often the poller refreshes the latest reading.
const DefaultInterval = 100 * time.Millisecond

// WithInterval sets the poll interval.
func WithInterval(interval time.Duration) func(*Poller) {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithLogger sets the logger for the poller.
func WithLogger(logger *slog.Logger) func(*Poller) {
	return func(p *Poller) {
		p.logger = logger.With(slog.String("component", "telemetry"))
	}
}

// Poller reads a Provider on a fixed interval and keeps only the most recent
// reading. No history is retained in memory; persistence is the snapshot
// logger's job.
type Poller struct {
	provider Provider
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	latest Reading
}

// NewPoller creates a poller. The first reading is taken eagerly so Latest
// never returns a zero value once the poller is constructed.
func NewPoller(provider Provider, options ...func(*Poller)) *Poller {
	p := Poller{
		provider: provider,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(&p)
	}

	p.latest = provider.Get()
	return &p
}

// Run refreshes readings until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("telemetry polling started", slog.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("telemetry polling stopped")
			return

		case <-ticker.C:
			reading := p.provider.Get()

			p.mu.Lock()
			p.latest = reading
			p.mu.Unlock()
		}
	}
}

// Latest returns the most recent reading.
func (p *Poller) Latest() Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.latest
}
