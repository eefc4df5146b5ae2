package quarantine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically expires overdue pending items. It owns no other
// resource: it only reads deadlines and writes terminal transitions
// through the manager.
type Sweeper struct {
	manager   *Manager
	frequency time.Duration
	logger    *zap.Logger
	stopCh    chan struct{}
}

// NewSweeper creates a sweeper that runs at the given frequency.
func NewSweeper(manager *Manager, frequency time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		manager:   manager,
		frequency: frequency,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.manager.SweepExpired(context.Background(), time.Now()); err != nil {
				s.logger.Error("Expiry sweep failed", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
