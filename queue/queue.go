// Package queue implements the single-consumer task executor that
// serializes every touch of the server's in-memory model.
//
// Exactly one worker goroutine drains tasks in the order they were
// scheduled. There is no priority and no reordering: the queue is the
// synchronization, so code running inside a task may read and mutate
// shared state without locks. A task that blocks stalls the whole
// queue; that is a deliberate simplicity-over-throughput trade.
package queue

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one unit of work. Tasks run to completion; there is no
// cancellation once scheduled.
type Task func()

// Queue is the single-worker executor. The zero value is not usable;
// call New.
type Queue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	tasks  []Task
	closed bool

	// done is closed when the worker has drained and exited.
	done chan struct{}

	// depth callback for instrumentation; may be nil.
	onDepth func(int)
}

// New creates a queue and starts its worker goroutine.
func New() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.ready = sync.NewCond(&q.mu)

	go q.work()

	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Debug("Task queue worker started")

	return q
}

// OnDepth registers a callback invoked with the pending-task count on
// every schedule and completion. Used by the metrics layer.
func (q *Queue) OnDepth(fn func(int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDepth = fn
}

// Schedule appends a task. Tasks execute strictly in schedule order.
// Scheduling on a closed queue drops the task.
func (q *Queue) Schedule(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		logrus.WithFields(logrus.Fields{
			"function": "Schedule",
		}).Warn("Task scheduled on closed queue; dropping")
		return
	}

	q.tasks = append(q.tasks, task)
	if q.onDepth != nil {
		q.onDepth(len(q.tasks))
	}
	q.ready.Signal()
}

// ScheduleIn schedules a task to be enqueued after the given delay. The
// ordering guarantee applies from the moment the delay fires, not from
// this call; recurring work reschedules itself with this method.
func (q *Queue) ScheduleIn(delay time.Duration, task Task) {
	time.AfterFunc(delay, func() {
		q.Schedule(task)
	})
}

// Close stops the queue after draining already-scheduled tasks. Tasks
// scheduled after Close are dropped. Close blocks until the worker has
// exited.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.ready.Signal()
	q.mu.Unlock()

	<-q.done
}

func (q *Queue) work() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.ready.Wait()
		}
		if len(q.tasks) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		if q.onDepth != nil {
			q.onDepth(len(q.tasks))
		}
		q.mu.Unlock()

		task()
	}
}
