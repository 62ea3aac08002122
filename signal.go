package evcore

import (
	"sync"
	"weak"

	"github.com/petermattis/goid"
)

// Mode selects how a connected slot is invoked relative to the emitting
// goroutine.
type Mode uint8

const (
	// ModeDirect calls the slot synchronously on the emitting goroutine,
	// before Emit returns. The default.
	ModeDirect Mode = iota

	// ModeQueued posts the slot call as an event onto the receiver's
	// event loop and returns immediately; Emit does not wait for it to
	// run.
	ModeQueued

	// ModeBlocking posts the slot call onto the receiver's event loop and
	// blocks the emitting goroutine until it has run. If the emitting
	// goroutine is itself the loop's owner, the call runs inline instead
	// of deadlocking on a loop that can never drain it.
	ModeBlocking
)

// Locker is the mutual-exclusion strategy a Signal's connection table uses.
// Most signals want a real mutex; a signal that is documented as only ever
// touched from one goroutine can be given a NullLocker to skip the
// synchronization cost.
type Locker interface {
	Lock()
	Unlock()
}

// NullLocker is a Locker that does nothing. Using it on a Signal that is in
// fact touched from more than one goroutine is a data race; it exists for
// signals whose single-goroutine use is an invariant of their owning type.
type NullLocker struct{}

func (NullLocker) Lock()   {}
func (NullLocker) Unlock() {}

type connection[A any] struct {
	id      Id
	mode    Mode
	fn      func(A)
	loop    *EventLoop // target loop for Queued/Blocking dispatch; nil means Direct-only
	ctx     weak.Pointer[ObjectBase]
	managed bool
}

func (c *connection[A]) alive() bool {
	if !c.managed {
		return true
	}
	return c.ctx.Value() != nil
}

// Signal is a typed, many-listener event source. The zero value is not
// usable; construct one with NewSignal.
type Signal[A any] struct {
	lock   Locker
	conns  map[Id]*connection[A]
	order  []Id
	logger Logger
}

// NewSignal creates a Signal guarded by a real mutex.
func NewSignal[A any]() *Signal[A] {
	return NewSignalWithLocker[A](&sync.Mutex{})
}

// NewSignalWithLocker creates a Signal guarded by lock instead of an
// internal mutex. Pass NullLocker{} for a signal whose owning type already
// guarantees single-goroutine access.
func NewSignalWithLocker[A any](lock Locker) *Signal[A] {
	return &Signal[A]{lock: lock, conns: make(map[Id]*connection[A]), logger: defaultLogger}
}

// SetLogger overrides the signal's diagnostic sink, used for non-fatal
// events like a skipped blocking-to-inactive-loop dispatch.
func (s *Signal[A]) SetLogger(l Logger) { s.logger = l }

// Connect registers fn to run when the signal is emitted, for as long as
// ctx stays alive. ctx is typically the object that owns the slot; once it
// is garbage collected the connection is dropped the next time Emit (or
// GetConnectionCount) sweeps the table. Pass nil for ctx to get a
// connection that lasts until explicitly Disconnect-ed, with no target
// loop for Queued/Blocking dispatch; see ConnectUnmanaged to also supply
// one.
func (s *Signal[A]) Connect(ctx ObjectType, fn func(A), mode Mode) Id {
	var base *ObjectBase
	if ctx != nil {
		base = ctx.objectGate()
	}
	return s.connect(base, fn, mode)
}

// ConnectUnmanaged registers fn with no owning context; it is only ever
// removed by an explicit Disconnect call. loop, if non-nil, is the loop
// Queued/Blocking dispatch posts onto; pass nil for a connection that is
// only ever used in ModeDirect.
func (s *Signal[A]) ConnectUnmanaged(fn func(A), mode Mode, loop *EventLoop) Id {
	id := newConnectionId()
	c := &connection[A]{id: id, mode: mode, fn: fn, loop: loop}

	s.lock.Lock()
	s.conns[id] = c
	s.order = append(s.order, id)
	s.lock.Unlock()
	return id
}

func (s *Signal[A]) connect(base *ObjectBase, fn func(A), mode Mode) Id {
	id := newConnectionId()
	c := &connection[A]{id: id, mode: mode, fn: fn}
	if base != nil {
		c.managed = true
		c.ctx = weak.Make(base)
		c.loop = base.loop
	}

	s.lock.Lock()
	s.conns[id] = c
	s.order = append(s.order, id)
	s.lock.Unlock()
	return id
}

// ConnectMethod connects a bound method on receiver: Emit will call
// method(receiver, arg) for as long as receiver's ObjectBase is alive.
func ConnectMethod[T ObjectType, A any](s *Signal[A], receiver T, method func(T, A), mode Mode) Id {
	return s.Connect(receiver, func(a A) { method(receiver, a) }, mode)
}

// Disconnect removes a connection by id. Returns false if the id is not
// (or is no longer) present, whether because it was already disconnected
// or because its managed context has since expired.
func (s *Signal[A]) Disconnect(id Id) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.conns[id]; !ok {
		s.logger.Printf("evcore: disconnect skipped: %v", ErrAlreadyDisconnected)
		return false
	}
	delete(s.conns, id)
	s.removeFromOrder(id)
	return true
}

func (s *Signal[A]) removeFromOrder(id Id) {
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// ConnectionValid reports whether id refers to a connection that is both
// present and, if managed, still alive.
func (s *Signal[A]) ConnectionValid(id Id) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	c, ok := s.conns[id]
	return ok && c.alive()
}

// GetConnectionCount sweeps expired managed connections, then returns the
// number remaining.
func (s *Signal[A]) GetConnectionCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sweep()
	return len(s.conns)
}

func (s *Signal[A]) sweep() {
	live := s.order[:0]
	for _, id := range s.order {
		c, ok := s.conns[id]
		if !ok {
			continue
		}
		if !c.alive() {
			delete(s.conns, id)
			continue
		}
		live = append(live, id)
	}
	s.order = live
}

// Emit calls every live connection with arg, dispatched per its Mode:
// unmanaged connections first, then managed ones, each group in Connect
// order. Expired managed connections are swept first and do not run. The
// only failure a connection's dispatch can produce is a Blocking dispatch
// into a loop with no owner goroutine; Emit keeps dispatching the
// remaining connections in that case and returns the first error seen.
func (s *Signal[A]) Emit(arg A) error {
	s.lock.Lock()
	s.sweep()
	snapshot := make([]*connection[A], 0, len(s.order))
	for _, id := range s.order {
		if c := s.conns[id]; !c.managed {
			snapshot = append(snapshot, c)
		}
	}
	for _, id := range s.order {
		if c := s.conns[id]; c.managed {
			snapshot = append(snapshot, c)
		}
	}
	s.lock.Unlock()

	var firstErr error
	for _, c := range snapshot {
		if err := s.dispatch(c, arg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Signal[A]) dispatch(c *connection[A], arg A) error {
	switch c.mode {
	case ModeDirect:
		c.fn(arg)

	case ModeQueued:
		if c.loop == nil {
			c.fn(arg)
			return nil
		}
		c.loop.PostEvent(slotEvent(func() { c.fn(arg) }))

	case ModeBlocking:
		if c.loop == nil {
			c.fn(arg)
			return nil
		}
		ownerG, started := c.loop.GetThreadId()
		if !started {
			// Posting into a loop with no owner goroutine to drain it, then
			// waiting on the handoff, would block the emitter forever.
			// Skip the slot rather than risk a silent deadlock, and report
			// the precondition violation back to the caller.
			s.logger.Printf("evcore: blocking emit skipped: %v", ErrEventLoopInactive)
			return ErrEventLoopInactive
		}
		if goid.Get() == ownerG {
			// Emitting from the receiver's own owner goroutine: posting and
			// waiting would deadlock the loop waiting on itself, so run inline.
			c.fn(arg)
			return nil
		}
		h := newBlockingHandoff()
		c.loop.PostEvent(blockingSlotEvent(func() { c.fn(arg) }, h))
		h.wait()
	}
	return nil
}
