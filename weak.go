package evcore

import "weak"

// weakTimer is a non-owning reference to a Timer, held by the EventLoop's
// timerRecord so an armed wait callback never keeps a Timer alive past its
// last strong reference. The zero value refers to nothing.
type weakTimer struct {
	ptr weak.Pointer[Timer]
}

func newWeakTimer(t *Timer) weakTimer {
	return weakTimer{ptr: weak.Make(t)}
}

func (w weakTimer) get() *Timer {
	return w.ptr.Value()
}
