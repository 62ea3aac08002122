// Package reactor provides the pluggable task-queue-plus-timer collaborator
// an EventLoop drives. It deliberately knows nothing about evcore's Event
// type: a Reactor only ever moves around bare nullary closures, so it can
// be swapped for an alternate implementation (a poller-backed one, a
// pure-channel one for tests) without dragging in the rest of the package.
package reactor

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/zoobzio/clockz"
)

// Task is a unit of work a Reactor carries from Post to the next
// RunBlocking/PollNonblocking drain.
type Task = func()

// WaitTimer is a single one-shot wait registered through MakeWaitTimer.
// AsyncWait arms it; Cancel makes a pending fire a no-op if it hasn't
// already run. Cancel is safe to call more than once and after the timer
// has already fired.
type WaitTimer interface {
	AsyncWait(callback func())
	Cancel()
}

// Reactor is the black-box collaborator EventLoop drives: a thread-safe
// task queue plus a facility for one-shot timed callbacks. Posting is safe
// from any goroutine; RunBlocking/PollNonblocking must only be called from
// the loop's owner goroutine.
type Reactor interface {
	// Post enqueues a task for the next drain. Safe from any goroutine.
	Post(task Task)

	// RunBlocking drains tasks, blocking when the queue is empty, until
	// Stop is called.
	RunBlocking()

	// PollNonblocking drains whatever tasks are currently queued without
	// blocking, then returns.
	PollNonblocking()

	// Stop requests RunBlocking to return. Idempotent, safe from any
	// goroutine.
	Stop()

	// Reset clears a previous Stop request so a subsequent RunBlocking
	// call drains normally instead of returning immediately. Called once
	// by EventLoop.Start at the beginning of each start/stop cycle, never
	// implicitly by RunBlocking itself — a Stop racing the gap between
	// Start and RunBlocking actually running must stick, not get silently
	// cleared by the next RunBlocking call.
	Reset()

	// MakeWaitTimer creates (but does not arm) a one-shot wait timer for
	// the given duration.
	MakeWaitTimer(d time.Duration) WaitTimer
}

// defaultReactor backs its queue with an eapache/queue ring buffer guarded
// by a mutex and condition variable, and its timers with a clockz.Clock so
// production code runs on the wall clock while tests can inject a fake one.
type defaultReactor struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	q        *queue.Queue
	stopped  bool
	stopCh   chan struct{}

	clock clockz.Clock
}

// New creates a Reactor backed by the given clock. Pass clockz.RealClock in
// production; pass a fake clock in tests to make timer-driven scenarios
// deterministic.
func New(clock clockz.Clock) Reactor {
	r := &defaultReactor{
		q:      queue.New(),
		stopCh: make(chan struct{}),
		clock:  clock,
	}
	r.notEmpty = sync.NewCond(&r.mu)
	return r
}

func (r *defaultReactor) Post(task Task) {
	r.mu.Lock()
	r.q.Add(task)
	r.notEmpty.Signal()
	r.mu.Unlock()
}

func (r *defaultReactor) PollNonblocking() {
	for {
		r.mu.Lock()
		if r.q.Length() == 0 {
			r.mu.Unlock()
			return
		}
		task := r.q.Remove().(Task)
		r.mu.Unlock()

		task()
	}
}

func (r *defaultReactor) RunBlocking() {
	for {
		r.mu.Lock()
		for r.q.Length() == 0 && !r.stopped {
			r.notEmpty.Wait()
		}
		if r.q.Length() == 0 && r.stopped {
			r.mu.Unlock()
			return
		}
		task := r.q.Remove().(Task)
		r.mu.Unlock()

		task()
	}
}

func (r *defaultReactor) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.notEmpty.Broadcast()
	r.mu.Unlock()
}

func (r *defaultReactor) Reset() {
	r.mu.Lock()
	r.stopped = false
	r.mu.Unlock()
}

func (r *defaultReactor) MakeWaitTimer(d time.Duration) WaitTimer {
	return &defaultWaitTimer{clock: r.clock, interval: d, cancelCh: make(chan struct{})}
}

type defaultWaitTimer struct {
	clock    clockz.Clock
	interval time.Duration

	once     sync.Once
	cancelCh chan struct{}
}

func (w *defaultWaitTimer) AsyncWait(callback func()) {
	go func() {
		select {
		case <-w.clock.After(w.interval):
			callback()
		case <-w.cancelCh:
		}
	}()
}

func (w *defaultWaitTimer) Cancel() {
	w.once.Do(func() { close(w.cancelCh) })
}
