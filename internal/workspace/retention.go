package workspace

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/common/logger"
)

// Sweeper periodically removes workspace records that have been inactive
// for longer than the configured retention age.
type Sweeper struct {
	store    Store
	age      time.Duration
	interval time.Duration
	logger   *logger.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a retention sweeper. A zero or negative age disables
// sweeping entirely.
func NewSweeper(store Store, age, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:    store,
		age:      age,
		interval: interval,
		logger:   log.WithFields(zap.String("component", "workspace-sweeper")),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	if s.age <= 0 {
		s.logger.Debug("workspace retention disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.store.SweepInactive(ctx, s.age)
	if err != nil {
		s.logger.WithError(err).Error("workspace retention sweep failed")
		return
	}
	if len(removed) > 0 {
		s.logger.Info("swept inactive workspaces",
			zap.Int("count", len(removed)),
			zap.Strings("ids", removed))
	}
}
