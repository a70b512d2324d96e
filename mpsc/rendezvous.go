package mpsc

import (
	"sync/atomic"
	"time"

	"github.com/lockfree/corelock/parker"
)

// rendezvousShared implements a capacity-0 synchronous channel: Send does
// not return until a Recv has actually taken the value back out, so every
// matched send/receive pair is a single linearization point with no
// buffering in between, unlike SyncChannel(1) where Send only waits for
// room and can race ahead of the matching Recv.
type rendezvousShared[T any] struct {
	slot       boundedSlot[T]
	drain      senderWaiters // the committing sender waiting for its value to be claimed
	senders    atomic.Int64
	recvGone   atomic.Bool
	recvParker *parker.Parker
}

// RendezvousChannel returns a connected SyncSender/Receiver pair where
// every Send blocks until a matching Recv has taken the value: capacity 0,
// with no buffering at all.
func RendezvousChannel[T any]() (*SyncSender[T], *Receiver[T]) {
	sh := &rendezvousShared[T]{recvParker: parker.New()}
	sh.senders.Store(1)
	return &SyncSender[T]{backend: sh}, &Receiver[T]{backend: sh}
}

func (sh *rendezvousShared[T]) cloneSender() sendBackend[T] {
	sh.senders.Add(1)
	return sh
}

func (sh *rendezvousShared[T]) closeSender() {
	if sh.senders.Add(-1) == 0 {
		sh.recvParker.Unpark()
	}
}

// trySend attempts the handoff without blocking: it only succeeds if a
// Receiver is able to claim the value immediately, via a single CAS pair
// with no parking on either side.
func (sh *rendezvousShared[T]) trySend(value T) error {
	if sh.recvGone.Load() {
		return &TrySendError[T]{Value: value}
	}
	if !sh.slot.state.CompareAndSwap(slotEmpty, slotBusy) {
		return &TrySendError[T]{Value: value, Full: true}
	}
	sh.slot.value = value
	sh.slot.state.Store(slotCommitted)
	sh.recvParker.Unpark()
	return nil
}

// send blocks until a Receiver has taken value out of the channel. Since
// an arbitrary number of SyncSender clones may contend for the single slot
// concurrently, claiming it waits in the slot's own FIFO wait list rather
// than parking on a parker shared by every contender (see waitqueue.go).
func (sh *rendezvousShared[T]) send(value T) error {
	if sh.recvGone.Load() {
		return &SendError[T]{Value: value}
	}

	for !sh.slot.state.CompareAndSwap(slotEmpty, slotBusy) {
		if sh.recvGone.Load() {
			return &SendError[T]{Value: value}
		}
		w := sh.slot.waiters.enqueue()
		if sh.slot.state.CompareAndSwap(slotEmpty, slotBusy) {
			sh.slot.waiters.remove(w)
			break
		}
		if sh.recvGone.Load() {
			sh.slot.waiters.remove(w)
			return &SendError[T]{Value: value}
		}
		w.p.Park(time.Time{})
	}
	sh.slot.value = value
	sh.slot.state.Store(slotCommitted)
	sh.recvParker.Unpark()

	// Wait for the matching Recv to actually take it before returning,
	// which is what makes this a rendezvous rather than a 1-deep buffer.
	// Only one sender can ever hold the slot committed at a time, so this
	// is a separate wait list from the admission one above: a wakeup meant
	// for "the slot is free, try to claim it" must never be confused with
	// "your own committed value was just claimed".
	done := sh.drain.enqueue()
	for sh.slot.state.Load() != slotEmpty {
		if sh.recvGone.Load() && sh.slot.state.Load() == slotCommitted {
			sh.drain.remove(done)
			return &SendError[T]{Value: value}
		}
		done.p.Park(time.Time{})
	}
	sh.drain.remove(done)
	return nil
}

func (sh *rendezvousShared[T]) disconnectRecv() {
	sh.recvGone.Store(true)
	sh.slot.waiters.wakeAll()
	sh.drain.wakeAll()
}

func (sh *rendezvousShared[T]) claim() (T, bool) {
	if !sh.slot.state.CompareAndSwap(slotCommitted, slotBusy) {
		var zero T
		return zero, false
	}
	v := sh.slot.value
	var zero T
	sh.slot.value = zero
	sh.slot.state.Store(slotEmpty)
	sh.drain.wakeOne()
	return v, true
}

func (sh *rendezvousShared[T]) tryRecv() (T, error) {
	if v, ok := sh.claim(); ok {
		return v, nil
	}
	var zero T
	if sh.senders.Load() == 0 {
		return zero, TryRecvError{Disconnected: true}
	}
	return zero, TryRecvError{}
}

func (sh *rendezvousShared[T]) recvDeadline(deadline time.Time) (T, error) {
	for {
		if v, ok := sh.claim(); ok {
			return v, nil
		}
		if sh.senders.Load() == 0 {
			if v, ok := sh.claim(); ok {
				return v, nil
			}
			var zero T
			return zero, RecvError{}
		}
		if deadline.IsZero() {
			sh.recvParker.Park(time.Time{})
			continue
		}
		if !sh.recvParker.Park(deadline) {
			if v, ok := sh.claim(); ok {
				return v, nil
			}
			var zero T
			return zero, RecvTimeoutError{TimedOut: true}
		}
	}
}
