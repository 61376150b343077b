package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	applog "pmanager/internal/log"
)

// PendingProcessor handles one batch of outstanding work per call.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (int, error)
}

// Sweeper calls a PendingProcessor on a fixed interval until stopped.
type Sweeper struct {
	proc     PendingProcessor
	interval time.Duration
	logger   *applog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(proc PendingProcessor, interval time.Duration, logger *applog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if logger == nil {
		logger = applog.Default()
	}
	return &Sweeper{proc: proc, interval: interval, logger: logger.WithComponent(applog.ComponentWorker)}
}

// Start launches the loop. It returns an error if the sweeper is already
// running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.loop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Pending sweep started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for the batch in flight to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Pending sweep stopped", applog.FieldOperation, applog.OpShutdown)
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Pending sweep stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.proc.ProcessPending(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Pending sweep failed", applog.FieldError, err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Pending sweep mirrored events", "count", n)
	}
}
