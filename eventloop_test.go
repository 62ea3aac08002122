package evcore

import (
	"sync"
	"testing"
	"time"

	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoopLifecycle(t *testing.T) {
	t.Run("start is idempotent", func(t *testing.T) {
		loop := NewEventLoop()
		loop.Start()
		owner, _ := loop.GetThreadId()
		loop.Start()
		owner2, started := loop.GetThreadId()
		assert.True(t, started)
		assert.Equal(t, owner, owner2)
	})

	t.Run("process events before start fails", func(t *testing.T) {
		loop := NewEventLoop()
		err := loop.ProcessEvents()
		assert.ErrorIs(t, err, ErrEventLoopInactive)
	})

	t.Run("run from wrong goroutine fails", func(t *testing.T) {
		loop := NewEventLoop()
		loop.Start()

		errCh := make(chan error, 1)
		go func() { errCh <- loop.Run() }()

		assert.ErrorIs(t, <-errCh, ErrEventLoopWrongThread)
	})
}

func TestEventLoopPostEvent(t *testing.T) {
	t.Run("cross goroutine queued FIFO", func(t *testing.T) {
		loop := NewEventLoop()
		h := LaunchInThread(loop)

		ownerG, _ := loop.GetThreadId()
		var seenOwner []int64
		var mu sync.Mutex
		var out string

		letters := []string{"h", "e", "l", "l", "o"}
		done := make(chan struct{})
		var count int
		for _, letter := range letters {
			l := letter
			loop.PostEvent(slotEvent(func() {
				mu.Lock()
				out += l
				seenOwner = append(seenOwner, goid.Get())
				count++
				if count == len(letters) {
					close(done)
				}
				mu.Unlock()
			}))
		}

		<-done
		RemoveFromThread(loop, h, true)

		assert.Equal(t, "hello", out)
		for _, g := range seenOwner {
			assert.Equal(t, ownerG, g)
		}
	})
}

func TestEventLoopTimer(t *testing.T) {
	t.Run("single shot fires once after interval", func(t *testing.T) {
		loop := NewEventLoop()
		h := LaunchInThread(loop)

		timer := NewTimer(loop)
		fired := make(chan time.Time, 2)
		start := time.Now()
		timer.Timeout.Connect(nil, func(struct{}) { fired <- time.Now() }, ModeDirect)

		task := loop.PostTask(func() { timer.Start(50*time.Millisecond, false) })
		task.Wait()

		select {
		case ts := <-fired:
			assert.GreaterOrEqual(t, ts.Sub(start), 50*time.Millisecond)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for timer")
		}

		select {
		case <-fired:
			t.Fatal("single-shot timer fired twice")
		case <-time.After(100 * time.Millisecond):
		}

		RemoveFromThread(loop, h, true)
	})

	t.Run("sequential restart cancels earlier arm", func(t *testing.T) {
		loop := NewEventLoop()
		h := LaunchInThread(loop)

		timer := NewTimer(loop)
		fired := make(chan struct{}, 8)
		timer.Timeout.Connect(nil, func(struct{}) { fired <- struct{}{} }, ModeDirect)

		done := make(chan struct{})
		loop.PostEvent(slotEvent(func() {
			timer.Start(50*time.Millisecond, false)
			timer.Start(60*time.Millisecond, false)
			timer.Start(70*time.Millisecond, false)
			close(done)
		}))
		<-done

		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for final timer")
		}

		select {
		case <-fired:
			t.Fatal("more than one timeout observed")
		case <-time.After(150 * time.Millisecond):
		}

		RemoveFromThread(loop, h, true)
	})
}

func TestTaskWaitFor(t *testing.T) {
	t.Run("finished before deadline", func(t *testing.T) {
		loop := NewEventLoop()
		h := LaunchInThread(loop)
		defer RemoveFromThread(loop, h, true)

		task := loop.PostTask(func() { time.Sleep(10 * time.Millisecond) })
		state := task.WaitFor(2 * time.Second)
		assert.Equal(t, TaskFinished, state)
	})

	t.Run("timeout when task is slow", func(t *testing.T) {
		loop := NewEventLoop()
		h := LaunchInThread(loop)
		defer RemoveFromThread(loop, h, true)

		release := make(chan struct{})
		task := loop.PostTask(func() { <-release })
		state := task.WaitFor(20 * time.Millisecond)
		assert.Equal(t, TaskTimeout, state)
		close(release)
		task.Wait()
	})
}

type capturingLogger struct {
	mu   sync.Mutex
	args [][]any
}

func (c *capturingLogger) Printf(format string, args ...any) {
	c.mu.Lock()
	c.args = append(c.args, args)
	c.mu.Unlock()
}

func TestBlockingEmitToInactiveLoop(t *testing.T) {
	loop := NewEventLoop()
	require.False(t, loop.GetStarted())

	sig := NewSignal[int]()
	logger := &capturingLogger{}
	sig.SetLogger(logger)

	invoked := false
	sig.ConnectUnmanaged(func(int) { invoked = true }, ModeBlocking, loop)

	done := make(chan error, 1)
	go func() {
		done <- sig.Emit(1)
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking emit to an inactive loop hung instead of failing fast")
	}

	assert.ErrorIs(t, err, ErrEventLoopInactive)
	assert.False(t, invoked)
	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Len(t, logger.args, 1)
	assert.ErrorIs(t, logger.args[0][0].(error), ErrEventLoopInactive)
}
