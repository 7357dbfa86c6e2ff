// Package workerpool implements C2, the fixed-size rendezvous worker pool.
// It is a direct translation of
// original_source/machsuite_app/src/application/thread_pool.c into Go's
// sync.Mutex/sync.Cond, keeping the same two-condition-variable handshake
// (task-ready / ack) rather than switching to a buffered channel, since the
// spec calls for an explicit one-at-a-time rendezvous rather than an
// auxiliary task queue (spec §4.2 rationale).
package workerpool

import (
	"sync"

	"github.com/sirupsen/logrus"

	"fpgasched/internal/logging"
)

// Task is one unit of dispatched work: a routine and its argument, mirroring
// thread_pool.c's work_t.
type Task struct {
	Routine func(arg interface{})
	Arg     interface{}
}

// Pool is a fixed-size set of worker goroutines that accept one task at a
// time through a rendezvous handshake (spec §4.2).
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond // signaled when a task becomes available
	ack  *sync.Cond // signaled when a worker has claimed the pending task

	numWorkers int
	task       *Task
	wakeUp     bool
	shutdown   bool
	running    []bool
	executed   []int
	logger     logrus.FieldLogger
	wg         sync.WaitGroup
	done       bool
}

// NewPool creates and starts numWorkers worker goroutines. Per spec §4.2,
// callers should size the pool as NUM_SLOTS + 1.
func NewPool(numWorkers int) *Pool {
	p := &Pool{
		numWorkers: numWorkers,
		running:    make([]bool, numWorkers),
		executed:   make([]int, numWorkers),
		logger:     logging.GetLogger().WithField("component", "workerpool"),
	}
	p.cond = sync.NewCond(&p.mu)
	p.ack = sync.NewCond(&p.mu)

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for !p.wakeUp {
			p.running[id] = false
			if p.shutdown {
				p.mu.Unlock()
				return
			}
			p.cond.Wait()
		}

		task := p.task
		p.task = nil
		p.wakeUp = false
		p.running[id] = true
		p.ack.Signal()
		p.mu.Unlock()

		task.Routine(task.Arg)

		p.mu.Lock()
		p.executed[id]++
		p.running[id] = false
		p.mu.Unlock()
	}
}

// Dispatch hands routine(arg) to whichever worker claims it next, blocking
// until exactly one worker has taken ownership of the task (spec §4.2).
func (p *Pool) Dispatch(routine func(arg interface{}), arg interface{}) {
	p.mu.Lock()
	p.task = &Task{Routine: routine, Arg: arg}
	p.wakeUp = true
	p.cond.Signal()

	for p.wakeUp {
		p.ack.Wait()
	}
	p.mu.Unlock()
}

// IsDone reports true only when no worker currently has a task in flight
// (spec §4.2).
func (p *Pool) IsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, running := range p.running {
		if running {
			return false
		}
	}
	return true
}

// Shutdown signals every worker to exit after finishing any in-flight task
// and waits for all of them, matching thread_pool.c's destroy_threadpool.
// Calling Shutdown more than once is a no-op after the first call (spec §8
// property 7, idempotent shutdown).
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// ExecutedByWorker returns a copy of the per-worker completed-task counters
// (thread_pool.c's executed_tasks_per_thread), for diagnostics.
func (p *Pool) ExecutedByWorker() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.executed))
	copy(out, p.executed)
	return out
}
