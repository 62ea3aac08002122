package evcore

import (
	"sync/atomic"
	"time"
)

// Timer is an Object that emits Timeout on its owning EventLoop after an
// interval, once or repeatedly. Start and Stop post StartTimer/StopTimer
// events, which the loop applies inline (see EventLoop.PostEvent) rather
// than queuing behind other work.
type Timer struct {
	ObjectBase

	// Timeout fires with no arguments each time the interval elapses.
	Timeout *Signal[struct{}]

	active   atomic.Bool
	interval time.Duration
	repeat   bool
}

// NewTimer creates a Timer attached to loop, inert until Start is called.
func NewTimer(loop *EventLoop) *Timer {
	return MakeObject(func() *Timer {
		return &Timer{
			ObjectBase: newObjectBase(loop),
			Timeout:    NewSignal[struct{}](),
		}
	})
}

// Init satisfies Initializer. Timer needs no post-construction setup; it
// exists so MakeObject's Initializer constraint is satisfied uniformly
// across object types.
func (t *Timer) Init() {}

// Start arms the timer for the given interval. If repeating is false,
// Timeout fires once and the timer goes inactive; otherwise it keeps
// firing every interval until Stop is called. Calling Start while already
// armed cancels the previous arming first.
//
// Repeats are not drift-corrected: after each timeout has been handled on
// the loop, a fresh wait of interval is armed, so the period of a
// repeating timer is interval plus the time the loop takes to get to and
// handle each timeout.
func (t *Timer) Start(interval time.Duration, repeating bool) {
	t.interval = interval
	t.repeat = repeating
	t.active.Store(true)
	t.GetEventLoop().PostEvent(startTimerEvent(t.GetId(), t, interval, repeating))
}

// Stop disarms the timer. A no-op if it is not currently active.
func (t *Timer) Stop() {
	if !t.active.Swap(false) {
		return
	}
	t.GetEventLoop().PostEvent(stopTimerEvent(t.GetId()))
}

// GetInterval returns the interval passed to the most recent Start.
func (t *Timer) GetInterval() time.Duration { return t.interval }

// GetRepeating returns the repeating flag passed to the most recent Start.
func (t *Timer) GetRepeating() bool { return t.repeat }

// GetActive reports whether the timer is currently armed.
func (t *Timer) GetActive() bool { return t.active.Load() }
