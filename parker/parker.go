// Package parker implements the per-goroutine blocking primitive that every
// slow path in this module suspends on: each RwLock waiter and each blocked
// MPSC sender owns one Parker for the duration of a single acquire/send
// attempt, and each MPSC channel keeps one Parker for its Receiver.
//
// There is no portable futex or wait-on-address primitive in the Go standard
// library, so Park/Unpark are built over a small state machine plus a
// single-slot channel, the same shape zenq.ThreadParker uses (a semaphore
// count guarding a sleeping goroutine) but adapted so a notification that
// arrives before Park is called is not lost.
package parker

import (
	"sync/atomic"
	"time"
)

// States a Parker cycles through. A Parker is reusable across park cycles;
// every cycle starts and ends in idle.
const (
	idle int32 = iota
	parked
	notified
)

// Parker is a one-shot, per-goroutine blocking primitive. Create one with
// New; the zero value has no wake channel and is not usable. It must not be
// copied after first use.
type Parker struct {
	state atomic.Int32
	wake  chan struct{}
}

// New returns a ready-to-use Parker.
func New() *Parker {
	return &Parker{wake: make(chan struct{}, 1)}
}

// Park suspends the calling goroutine until Unpark is called or deadline
// elapses. A zero deadline means "no deadline". Returns true if woken by a
// real Unpark, false on timeout. A call to Unpark that raced in before Park
// was called makes this call return true immediately.
func (p *Parker) Park(deadline time.Time) bool {
	for {
		switch p.state.Load() {
		case notified:
			if p.state.CompareAndSwap(notified, idle) {
				// Drain a possibly-buffered wake token left behind by a
				// racing Unpark so the next park cycle starts clean.
				select {
				case <-p.wake:
				default:
				}
				return true
			}
		case idle:
			if p.state.CompareAndSwap(idle, parked) {
				return p.wait(deadline)
			}
		default: // parked: another goroutine is already waiting on this node
			return p.wait(deadline)
		}
	}
}

func (p *Parker) wait(deadline time.Time) bool {
	if deadline.IsZero() {
		<-p.wake
		p.state.Store(idle)
		return true
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return p.timeout()
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-p.wake:
		p.state.Store(idle)
		return true
	case <-timer.C:
		return p.timeout()
	}
}

// timeout handles the race between a firing deadline and a concurrent
// Unpark: if we win the CAS back to idle, no wake token was ever sent and we
// report a real timeout. If we lose it, Unpark already queued a token that
// we must still consume so the channel doesn't carry it into the next cycle.
func (p *Parker) timeout() bool {
	if p.state.CompareAndSwap(parked, idle) {
		return false
	}
	<-p.wake
	p.state.Store(idle)
	return true
}

// Unpark wakes the calling Park (or the next one to be called, if none is
// currently parked) exactly once. Idempotent within a single park cycle:
// calling Unpark twice before the corresponding Park observes it only wakes
// the waiter once.
func (p *Parker) Unpark() {
	for {
		switch p.state.Load() {
		case notified:
			return
		case parked:
			if p.state.CompareAndSwap(parked, notified) {
				select {
				case p.wake <- struct{}{}:
				default:
				}
				return
			}
		default: // idle
			if p.state.CompareAndSwap(idle, notified) {
				return
			}
		}
	}
}
