package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrExecutorFull    = errors.New("executor queue is full")
	ErrExecutorStopped = errors.New("executor is stopped")
)

// Task is a unit of background work. ctx is cancelled when the executor shuts
// down.
type Task func(ctx context.Context)

type namedTask struct {
	name string
	run  Task
}

// Executor runs fire-and-forget tasks on a fixed number of worker routines fed
// from a bounded queue. Tasks report their outcome themselves, normally by
// updating a job in a jobstate.Store.
type Executor struct {
	workers int
	tasks   chan namedTask

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	g       *errgroup.Group
}

func NewExecutor(workers, queueSize int) *Executor {
	if workers < 1 {
		workers = 1
	}

	if queueSize < 1 {
		queueSize = workers
	}

	return &Executor{
		workers: workers,
		tasks:   make(chan namedTask, queueSize),
	}
}

// Start launches the worker routines. Tasks run with a context derived from ctx.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.g, ctx = errgroup.WithContext(ctx)
	e.started = true

	for i := 0; i < e.workers; i++ {
		e.g.Go(func() error {
			e.runTasks(ctx)
			return nil
		})
	}
}

func (e *Executor) runTasks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-e.tasks:
			e.runTask(ctx, t)
		}
	}
}

func (e *Executor) runTask(ctx context.Context, t namedTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Task %s panicked: %v", t.name, r)
		}
	}()

	t.run(ctx)
}

// Submit queues a task without blocking. It fails with ErrExecutorFull when
// the queue is full and ErrExecutorStopped after Shutdown.
func (e *Executor) Submit(name string, task Task) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return ErrExecutorStopped
	}

	select {
	case e.tasks <- namedTask{name: name, run: task}:
		return nil
	default:
		return ErrExecutorFull
	}
}

// Shutdown cancels running tasks and waits for the worker routines to exit.
// Queued tasks that have not started are dropped.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	e.stopped = true
	started := e.started
	e.mu.Unlock()

	if !started {
		return
	}

	e.cancel()
	_ = e.g.Wait()
}
