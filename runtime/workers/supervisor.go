package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"whiteboard/contract"
	"whiteboard/errors"
)

var _ contract.ISupervisor = (*Supervisor)(nil)

// Supervisor keeps the background workers of the server alive.
// A worker returning nil is done for good, a worker that fails or panics is
// restarted after restartDelay until the supervised context is canceled.
type Supervisor struct {
	cancel       context.CancelFunc // stops only the supervised workers
	wg           sync.WaitGroup
	log          *slog.Logger
	restartDelay time.Duration // pause between a crash and the restart
	workers      []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartDelay time.Duration) *Supervisor {
	return &Supervisor{log: log, restartDelay: restartDelay}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run starts every registered worker and blocks until all of them stopped.
// Canceling ctx or calling Stop ends the supervision.
func (s *Supervisor) Run(ctx context.Context) {
	// 1. Local cancellation tied to the parent ctx.
	// The parent canceling stops us, Stop only stops our workers.
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	// 2. One goroutine per worker, then wait for all of them

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs a single worker in its own goroutine under supervision.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()
		for restarts := 0; ; restarts++ {
			if ctx.Err() != nil {
				s.log.Info("Stopping worker", "name", name)
				return
			}

			// Only the worker is restarted, not this goroutine
			err := s.safeRun(ctx, worker)
			if err == nil {
				// Terminated properly, never restart !
				s.log.Info("Worker finished", "name", name)
				return
			}
			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", name)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", name, "restarts", restarts+1, "error", err)
			select {
			case <-ctx.Done():
				// Priority stop, no need to wait for the delay
				return
			case <-time.After(s.restartDelay):
				// Still alive, go for a restart
			}
		}
	}()
}

// safeRun turns a panic into ErrWorkerPanic so the loop above survives it.
func (s *Supervisor) safeRun(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrWorkerPanic
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels every supervised worker. Run returns once they are all gone.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
