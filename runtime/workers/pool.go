package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"whiteboard/contract"
	"whiteboard/errors"

	"golang.org/x/sync/errgroup"
)

// HandlerPool runs one worker per connection with a fixed ceiling.
// Submit blocks once the ceiling is reached, so a saturated pool slows the
// accept loop down instead of turning connections away.
type HandlerPool struct {
	log    *slog.Logger
	group  errgroup.Group
	active atomic.Int64
}

func NewHandlerPool(log *slog.Logger, size int) *HandlerPool {
	p := &HandlerPool{log: log}
	p.group.SetLimit(size)
	return p
}

// Submit hands the worker to the pool. A panic inside the worker is recovered
// and only ends that worker. Errors are logged, never propagated to siblings.
func (p *HandlerPool) Submit(ctx context.Context, worker contract.Worker) {
	p.group.Go(func() error {
		p.active.Add(1)
		defer p.active.Add(-1)

		if err := p.run(ctx, worker); err != nil && ctx.Err() == nil {
			p.log.Warn("Handler ended with error", "name", contract.GetWorkerName(worker), "error", err)
		}
		return nil
	})
}

func (p *HandlerPool) run(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Handler panicked", "name", contract.GetWorkerName(worker), "panic", r)
			err = fmt.Errorf("%v: %w", r, errors.ErrWorkerPanic)
		}
	}()
	return worker.Run(ctx)
}

// Active is the number of workers currently running.
func (p *HandlerPool) Active() int {
	return int(p.active.Load())
}

// Wait blocks until every submitted worker returned.
func (p *HandlerPool) Wait() {
	_ = p.group.Wait()
}
