package evcore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"github.com/zoobzio/clockz"

	"github.com/arfarley/evcore/reactor"
)

// EventLoopOption configures an EventLoop at construction time.
type EventLoopOption func(*loopConfig)

type loopConfig struct {
	reactor reactor.Reactor
	clock   clockz.Clock
	logger  Logger
}

// WithReactor overrides the default queue-plus-timer collaborator. Mostly
// useful for tests that want a reactor instrumented for assertions.
func WithReactor(r reactor.Reactor) EventLoopOption {
	return func(c *loopConfig) { c.reactor = r }
}

// WithClock overrides the clock used by the default reactor. Ignored if
// WithReactor is also supplied.
func WithClock(clock clockz.Clock) EventLoopOption {
	return func(c *loopConfig) { c.clock = clock }
}

// WithLogger overrides the loop's diagnostic sink, which otherwise discards
// everything. The loop only writes to it for conditions a caller cannot
// observe through a return value, such as a timer firing after its Timer
// has already been garbage collected.
func WithLogger(l Logger) EventLoopOption {
	return func(c *loopConfig) { c.logger = l }
}

// timerRecord is the EventLoop-private bookkeeping entry for one Timer. At
// most one record exists per (EventLoop, Timer.id) at a time; starting a
// timer that already has a record cancels the old one first.
type timerRecord struct {
	wait     reactor.WaitTimer
	timer    weakTimer
	interval time.Duration
	repeat   bool
	canceled atomic.Bool
}

// EventLoop serializes work posted from any goroutine onto one owner
// goroutine, and schedules Timer wait callbacks. See SPEC_FULL.md §4.1.
type EventLoop struct {
	id Id

	reactor reactor.Reactor

	mu      sync.Mutex
	started bool
	running bool
	ownerG  int64 // goroutine id of the current owner; valid iff started
	timers  map[Id]*timerRecord

	stoppedCh chan struct{} // replaced by Start, closed when the loop transitions started->false; Wait blocks on it
	waitMu    sync.Mutex

	logger Logger
}

// NewEventLoop creates an inert loop. Call Start then Run (or
// LaunchInThread) to begin draining events.
func NewEventLoop(opts ...EventLoopOption) *EventLoop {
	cfg := loopConfig{clock: clockz.RealClock, logger: defaultLogger}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.reactor == nil {
		cfg.reactor = reactor.New(cfg.clock)
	}

	l := &EventLoop{
		id:        newEventLoopId(),
		reactor:   cfg.reactor,
		timers:    make(map[Id]*timerRecord),
		stoppedCh: make(chan struct{}),
		logger:    cfg.logger,
	}
	close(l.stoppedCh) // loop starts already "stopped"
	return l
}

// GetId returns the loop's unique, immutable id.
func (l *EventLoop) GetId() Id { return l.id }

// GetThreadId returns the goroutine id of the current owner, and whether
// the loop currently has one (i.e. is started).
func (l *EventLoop) GetThreadId() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ownerG, l.started
}

// GetStarted reports whether Start has been called without a matching Stop.
func (l *EventLoop) GetStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

// GetRunning reports whether the loop is currently inside Run.
func (l *EventLoop) GetRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// LoopState summarizes GetStarted/GetRunning in one read.
type LoopState struct {
	Started bool
	Running bool
}

// GetState returns a consistent snapshot of Started and Running.
func (l *EventLoop) GetState() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoopState{Started: l.started, Running: l.running}
}

// Start transitions the loop from stopped to started and records the
// calling goroutine as owner. Idempotent: calling Start again while
// already started is a no-op.
func (l *EventLoop) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.ownerG = goid.Get()
	l.mu.Unlock()

	l.reactor.Reset()

	l.waitMu.Lock()
	l.stoppedCh = make(chan struct{})
	l.waitMu.Unlock()
}

// Run drains events on the owner goroutine, blocking whenever the queue is
// empty, until Stop is observed. It may only be called from the goroutine
// that called Start.
func (l *EventLoop) Run() error {
	if err := l.checkOwnerPrecondition(); err != nil {
		return err
	}

	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	l.reactor.RunBlocking()

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	return nil
}

// ProcessEvents drains whatever is currently queued without blocking, then
// returns. Same preconditions as Run; does not set Running.
func (l *EventLoop) ProcessEvents() error {
	if err := l.checkOwnerPrecondition(); err != nil {
		return err
	}

	l.reactor.PollNonblocking()
	return nil
}

func (l *EventLoop) checkOwnerPrecondition() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return ErrEventLoopInactive
	}
	if goid.Get() != l.ownerG {
		return ErrEventLoopWrongThread
	}
	return nil
}

// Stop clears Started (and Running, once Run notices), removes the
// keepalive, and asks the reactor to return from RunBlocking. Safe from
// any goroutine; idempotent.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	wasStarted := l.started
	l.started = false
	l.mu.Unlock()

	l.reactor.Stop()

	if wasStarted {
		l.waitMu.Lock()
		close(l.stoppedCh)
		l.waitMu.Unlock()
	}
}

// Wait blocks until the loop has stopped. A no-op if already stopped.
func (l *EventLoop) Wait() {
	l.waitMu.Lock()
	ch := l.stoppedCh
	l.waitMu.Unlock()
	<-ch
}

// PostEvent enqueues an event for the loop's owner goroutine, except timer
// variants which are applied inline under the loop's lock (see §4.1):
// queuing a StartTimer behind a slow event would defer its effective start
// time unpredictably.
func (l *EventLoop) PostEvent(ev event) {
	switch ev.kind {
	case eventStartTimer:
		l.handleStartTimer(ev)
	case eventStopTimer:
		l.handleStopTimer(ev.timerID)
	default:
		l.reactor.Post(func() { l.dispatch(ev) })
	}
}

// PostStopEvent enqueues a Stop so that it executes, in order, after
// previously posted events, rather than stopping immediately.
func (l *EventLoop) PostStopEvent() {
	l.reactor.Post(func() { l.dispatch(stopEvent()) })
}

func (l *EventLoop) dispatch(ev event) {
	switch ev.kind {
	case eventSlot:
		ev.fn()
	case eventBlockingSlot:
		ev.fn()
		ev.handoff.signal()
	case eventStop:
		l.Stop()
	}
}

func (l *EventLoop) handleStartTimer(ev event) {
	l.mu.Lock()
	if old, ok := l.timers[ev.timerID]; ok {
		old.canceled.Store(true)
		old.wait.Cancel()
		delete(l.timers, ev.timerID)
	}

	rec := &timerRecord{
		timer:    newWeakTimer(ev.timer),
		interval: ev.interval,
		repeat:   ev.repeat,
	}
	rec.wait = l.reactor.MakeWaitTimer(ev.interval)
	l.timers[ev.timerID] = rec
	l.mu.Unlock()

	l.armTimer(ev.timerID, rec)
}

// armTimer arranges for onTimerFired to run on the loop's owner goroutine.
// The reactor's wait-timer callback itself may run on an arbitrary
// goroutine (the default implementation uses a dedicated one per timer),
// so it only posts; the actual firing logic always runs through the same
// queue as every other event, keeping Timeout.Emit on the owner goroutine
// like any other Direct-mode signal raised from loop-owned code.
func (l *EventLoop) armTimer(id Id, rec *timerRecord) {
	rec.wait.AsyncWait(func() {
		l.reactor.Post(func() { l.onTimerFired(id, rec) })
	})
}

func (l *EventLoop) onTimerFired(id Id, rec *timerRecord) {
	if rec.canceled.Load() {
		return
	}
	t := rec.timer.get()
	if t == nil {
		l.logger.Printf("evcore: timer %d fired after its Timer was collected", id)
		return
	}

	_ = t.Timeout.Emit(struct{}{})

	if rec.canceled.Load() {
		return
	}

	if rec.repeat {
		l.mu.Lock()
		if cur, ok := l.timers[id]; !ok || cur != rec {
			l.mu.Unlock()
			return
		}
		rec.wait = l.reactor.MakeWaitTimer(rec.interval)
		l.mu.Unlock()
		l.armTimer(id, rec)
		return
	}

	t.active.Store(false)

	l.mu.Lock()
	if cur, ok := l.timers[id]; ok && cur == rec {
		delete(l.timers, id)
	}
	l.mu.Unlock()
}

func (l *EventLoop) handleStopTimer(id Id) {
	l.mu.Lock()
	rec, ok := l.timers[id]
	if ok {
		delete(l.timers, id)
	}
	if ok {
		rec.canceled.Store(true)
		rec.wait.Cancel()
	}
	l.mu.Unlock()
}

// PostTask posts fn wrapped in a Task. If the calling goroutine is already
// the loop's owner, fn runs immediately and synchronously; otherwise it is
// enqueued and PostTask returns without waiting.
func (l *EventLoop) PostTask(fn func()) *Task {
	task := newTask(fn)

	l.mu.Lock()
	isOwner := l.started && goid.Get() == l.ownerG
	l.mu.Unlock()

	if isOwner {
		task.Invoke()
		return task
	}

	l.reactor.Post(func() { task.Invoke() })
	return task
}

// LoopHandle is the join handle returned by LaunchInThread.
type LoopHandle struct {
	loop *EventLoop
	done chan struct{}
}

// LaunchInThread starts a helper goroutine that calls loop.Start then
// loop.Run, and returns once Running has been observed.
func LaunchInThread(loop *EventLoop) *LoopHandle {
	h := &LoopHandle{loop: loop, done: make(chan struct{})}
	runningObserved := make(chan struct{})

	go func() {
		defer close(h.done)

		loop.Start()
		close(runningObserved)
		_ = loop.Run()
	}()

	<-runningObserved
	for !loop.GetRunning() {
		time.Sleep(time.Millisecond)
		if !loop.GetStarted() {
			break
		}
	}
	return h
}

// RemoveFromThread stops loop (queued if postStop is true, inline
// otherwise) and joins the helper goroutine started by LaunchInThread.
func RemoveFromThread(loop *EventLoop, h *LoopHandle, postStop bool) {
	if postStop {
		loop.PostStopEvent()
	} else {
		loop.Stop()
	}
	<-h.done
}
