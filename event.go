package evcore

import (
	"sync"
	"time"
)

// eventKind tags which field of an event is populated. Kept as a small
// closed enum rather than an interface{} payload so the loop's hot path
// (draining the queue) never has to allocate a type switch target.
type eventKind uint8

const (
	eventSlot eventKind = iota
	eventBlockingSlot
	eventStartTimer
	eventStopTimer
	eventStop
)

// blockingHandoff is the rendezvous a Blocking-mode Signal dispatch waits
// on: the emitter blocks on cond until completed flips true.
type blockingHandoff struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed bool
}

func newBlockingHandoff() *blockingHandoff {
	h := &blockingHandoff{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *blockingHandoff) signal() {
	h.mu.Lock()
	h.completed = true
	h.cond.Signal()
	h.mu.Unlock()
}

func (h *blockingHandoff) wait() {
	h.mu.Lock()
	for !h.completed {
		h.cond.Wait()
	}
	h.mu.Unlock()
}

// event is the tagged union of work an EventLoop can carry. Slot and
// BlockingSlot wrap a nullary callable; StartTimer/StopTimer are handled
// inline by the loop rather than queued (see EventLoop.PostEvent).
type event struct {
	kind eventKind

	fn       func() // Slot / BlockingSlot payload
	handoff  *blockingHandoff
	timerID  Id
	timer    *Timer
	interval time.Duration
	repeat   bool
}

func slotEvent(fn func()) event {
	return event{kind: eventSlot, fn: fn}
}

func blockingSlotEvent(fn func(), h *blockingHandoff) event {
	return event{kind: eventBlockingSlot, fn: fn, handoff: h}
}

func startTimerEvent(id Id, t *Timer, interval time.Duration, repeat bool) event {
	return event{kind: eventStartTimer, timerID: id, timer: t, interval: interval, repeat: repeat}
}

func stopTimerEvent(id Id) event {
	return event{kind: eventStopTimer, timerID: id}
}

func stopEvent() event {
	return event{kind: eventStop}
}
