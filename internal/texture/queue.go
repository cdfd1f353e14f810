package texture

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"
)

// Task is a unit of work for the background worker. The concrete types are
// DecodeTask and DumpTask.
type Task interface {
	TaskKey() CacheKey
}

// DecodeTask loads and decodes one replacement.
type DecodeTask struct {
	Key         CacheKey
	Filename    string
	WantsMipmap bool
}

func (t DecodeTask) TaskKey() CacheKey { return t.Key }

// DumpTask writes one texture to the dump directory.
type DumpTask struct {
	Key   CacheKey
	Path  string
	Image *DecodedImage
}

func (t DumpTask) TaskKey() CacheKey { return t.Key }

// Queue runs tasks one at a time, in FIFO order, on a single worker goroutine.
type Queue struct {
	handle func(Task)

	// serializes Start and Stop
	lifecycle sync.Mutex

	mu      sync.Mutex
	work    *sync.Cond
	idle    *sync.Cond
	tasks   []Task
	busy    bool
	running bool
	wg      *conc.WaitGroup
	done    chan struct{}
}

// NewQueue creates a stopped queue whose worker passes every task to handle.
func NewQueue(handle func(Task)) *Queue {
	q := &Queue{handle: handle}
	q.work = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker. It returns false if the worker was already running.
func (q *Queue) Start() bool {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()

	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return false
	}
	q.running = true
	done := make(chan struct{})
	q.done = done
	q.wg = conc.NewWaitGroup()
	q.mu.Unlock()

	q.wg.Go(func() {
		defer close(done)
		q.loop()
	})
	return true
}

// Stop signals the worker, waits for it to exit and discards any tasks that
// had not started. A task that is executing runs to completion first.
func (q *Queue) Stop() {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()

	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.work.Broadcast()
	wg := q.wg
	q.mu.Unlock()

	wg.Wait()

	q.mu.Lock()
	clear(q.tasks)
	q.tasks = q.tasks[:0]
	q.idle.Broadcast()
	q.mu.Unlock()
}

// Running reports whether the worker has been started and not stopped.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Done returns a channel closed when the most recently started worker exits.
// It is nil if the queue was never started.
func (q *Queue) Done() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done
}

// Enqueue appends t. Tasks are refused while the worker is not running.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return false
	}
	q.tasks = append(q.tasks, t)
	q.work.Signal()
	return true
}

// CancelAll drops every task that has not started and returns how many were
// dropped.
func (q *Queue) CancelAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.tasks)
	clear(q.tasks)
	q.tasks = q.tasks[:0]
	if !q.busy {
		q.idle.Broadcast()
	}
	return n
}

// Len returns the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Snapshot returns a copy of the waiting tasks.
func (q *Queue) Snapshot() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.tasks...)
}

// WaitIdle blocks until no task is waiting or executing, the worker stops, or
// ctx is done.
func (q *Queue) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.idle.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.running && (len(q.tasks) > 0 || q.busy) {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.idle.Wait()
	}
	return nil
}

func (q *Queue) loop() {
	q.mu.Lock()
	for {
		for q.running && len(q.tasks) == 0 {
			q.idle.Broadcast()
			q.work.Wait()
		}
		if !q.running {
			q.mu.Unlock()
			return
		}

		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.busy = true
		q.mu.Unlock()

		q.handle(t)

		q.mu.Lock()
		q.busy = false
	}
}
