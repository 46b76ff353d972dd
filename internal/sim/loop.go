package sim

import (
	"context"
	"log/slog"
	"time"
)

// Config holds loop configuration.
type Config struct {
	TickInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TickInterval: 100 * time.Millisecond}
}

// Loop advances every session in automatic mode by one tick per interval
// and records sessions as they finish.
type Loop struct {
	manager *Manager
	config  Config
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewLoop creates a new simulation loop.
func NewLoop(m *Manager, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		manager: m,
		config:  cfg,
		logger:  logger.With("component", "loop"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("loop started", "tick_interval", l.config.TickInterval)
	ticker := time.NewTicker(l.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("loop stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Stop shuts the loop down and waits for the current tick to finish.
func (l *Loop) Stop() error {
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// Tick advances each automatic session once. Sessions that finish, or fail,
// leave automatic mode; finished ones are recorded.
func (l *Loop) Tick(ctx context.Context) {
	for _, s := range l.manager.List() {
		if !s.Auto() {
			continue
		}
		if !s.Finished() {
			if _, err := s.Tick(ctx); err != nil {
				l.logger.Error("tick error", "sim_id", s.ID, "error", err)
				s.SetAuto(false)
				continue
			}
			if !s.Finished() {
				continue
			}
		}

		s.SetAuto(false)
		run, err := l.manager.Finish(ctx, s.ID)
		if err != nil {
			l.logger.Error("record run", "sim_id", s.ID, "error", err)
			continue
		}
		l.logger.Info("simulation finished", "sim_id", s.ID, "run_id", run.ID, "ticks", run.Ticks)
	}
}
