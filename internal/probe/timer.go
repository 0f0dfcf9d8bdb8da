package probe

import (
	"sync/atomic"
	"time"
)

const (
	timerArmed int32 = iota
	timerFired
	timerCancelled
)

// oneShot runs fn once after d on its own goroutine unless cancelled first.
// Cancel and fire race on a single state word, so exactly one of them wins.
type oneShot struct {
	state atomic.Int32
	stop  chan struct{}
	done  chan struct{}
}

func startOneShot(d time.Duration, fn func()) *oneShot {
	o := &oneShot{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			if o.state.CompareAndSwap(timerArmed, timerFired) {
				fn()
			}
		case <-o.stop:
		}
	}()
	return o
}

// Cancel prevents the timer from firing. It reports whether this call was
// the one that cancelled it; cancelling a fired or cancelled timer is a no-op.
// Safe on a nil receiver.
func (o *oneShot) Cancel() bool {
	if o == nil {
		return false
	}
	if !o.state.CompareAndSwap(timerArmed, timerCancelled) {
		return false
	}
	close(o.stop)
	return true
}

// Wait blocks until the timer goroutine has exited.
func (o *oneShot) Wait() {
	if o == nil {
		return
	}
	<-o.done
}

// Fired reports whether the callback ran.
func (o *oneShot) Fired() bool {
	return o != nil && o.state.Load() == timerFired
}
