package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
)

// Task is one unit of background work. Its error is recorded, never
// returned to whoever submitted it.
type Task func(ctx context.Context) error

// Runner executes fire-and-forget tasks on an unbounded pool. Submit never
// blocks on the pool and gives no result back to the caller.
type Runner struct {
	ctx          context.Context
	cancel       context.CancelFunc
	group        *errgroup.Group
	metadataSink metadata.MetadataSink

	mu     sync.Mutex
	closed bool
}

// New creates a runner whose tasks observe ctx. Shutdown cancels it.
func New(ctx context.Context, metadataSink metadata.MetadataSink) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		ctx:          ctx,
		cancel:       cancel,
		group:        &errgroup.Group{},
		metadataSink: metadataSink,
	}
}

// Submit schedules task and returns at once. It reports false when the
// runner has been shut down.
func (r *Runner) Submit(name string, task Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}

	r.group.Go(func() error {
		r.run(name, task)
		// errors stay with the task; the group must keep accepting work
		return nil
	})
	return true
}

func (r *Runner) run(name string, task Task) {
	defer func() {
		if p := recover(); p != nil {
			r.recordFailure(name, fmt.Sprintf("panic: %v", p))
		}
	}()
	if err := task(r.ctx); err != nil {
		r.recordFailure(name, err.Error())
	}
}

func (r *Runner) recordFailure(name string, details string) {
	r.metadataSink.RecordError(
		time.Now(),
		"runner",
		name,
		metadata.CauseUnknown,
		details,
		nil,
	)
}

// Wait blocks until every submitted task has finished. Tasks keep their
// errors, so the group never reports one.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}

// Shutdown stops accepting tasks, cancels the running ones and waits for
// them to return.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.Wait()
}
