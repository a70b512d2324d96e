package mpsc

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/lockfree/corelock/parker"
)

// Slot states, the same three-state machine ZenQ's ring buffer uses to
// hand a single array element back and forth between writer and reader
// without a lock: empty -> busy (claimed) -> committed (has a value) -> empty.
const (
	slotEmpty uint32 = iota
	slotBusy
	slotCommitted
)

type boundedSlot[T any] struct {
	state   atomic.Uint32
	waiters senderWaiters // senders blocked waiting for this slot to free up
	value   T
}

// boundedShared is a fixed-size ring buffer shared by every SyncSender
// clone and the one Receiver. The ring is sized to exactly capacity slots
// (not rounded up to a power of two), so a slot being busy is precisely
// equivalent to the channel holding capacity unread items — Full and
// backpressure are always measured against the capacity the caller asked
// for, never a derived, oversized ring. A writer who claims a slot still
// holding an unread value waits in that slot's own FIFO wait list, exactly
// as ZenQ.Write parks on the slot's ThreadParker, generalized to queue
// arbitrarily many contending senders instead of sharing one parker among
// them (see waitqueue.go).
type boundedShared[T any] struct {
	size        uint64
	slots       []boundedSlot[T]
	writerIndex atomic.Uint64
	readerIndex atomic.Uint64
	pending     atomic.Int64 // committed slots not yet read
	senders     atomic.Int64
	recvGone    atomic.Bool
	recvParker  *parker.Parker
}

func newBoundedShared[T any](capacity int) *boundedShared[T] {
	if capacity < 1 {
		capacity = 1
	}
	sh := &boundedShared[T]{
		size:       uint64(capacity),
		slots:      make([]boundedSlot[T], capacity),
		recvParker: parker.New(),
	}
	sh.senders.Store(1)
	return sh
}

// SyncChannel returns a connected SyncSender/Receiver pair backed by a
// ring buffer holding up to capacity unread values. A capacity of 0
// produces a rendezvous channel; see RendezvousChannel.
func SyncChannel[T any](capacity int) (*SyncSender[T], *Receiver[T]) {
	if capacity <= 0 {
		return RendezvousChannel[T]()
	}
	sh := newBoundedShared[T](capacity)
	return &SyncSender[T]{backend: sh}, &Receiver[T]{backend: sh}
}

func (sh *boundedShared[T]) cloneSender() sendBackend[T] {
	sh.senders.Add(1)
	return sh
}

func (sh *boundedShared[T]) closeSender() {
	if sh.senders.Add(-1) == 0 {
		sh.recvParker.Unpark()
	}
}

// send blocks until there is room in the buffer or the Receiver
// disconnects.
func (sh *boundedShared[T]) send(value T) error {
	if sh.recvGone.Load() {
		return &SendError[T]{Value: value}
	}
	idx := (sh.writerIndex.Add(1) - 1) % sh.size
	slot := &sh.slots[idx]
	for !slot.state.CompareAndSwap(slotEmpty, slotBusy) {
		if sh.recvGone.Load() {
			return &SendError[T]{Value: value}
		}
		w := slot.waiters.enqueue()
		if slot.state.CompareAndSwap(slotEmpty, slotBusy) {
			slot.waiters.remove(w)
			break
		}
		if sh.recvGone.Load() {
			slot.waiters.remove(w)
			return &SendError[T]{Value: value}
		}
		w.p.Park(time.Time{})
	}
	slot.value = value
	slot.state.Store(slotCommitted)
	sh.pending.Add(1)
	sh.recvParker.Unpark()
	return nil
}

// trySend attempts to enqueue value without blocking. It fails with
// TrySendError.Full set if the buffer has no room right now.
func (sh *boundedShared[T]) trySend(value T) error {
	if sh.recvGone.Load() {
		return &TrySendError[T]{Value: value}
	}
	idx := (sh.writerIndex.Add(1) - 1) % sh.size
	slot := &sh.slots[idx]
	if !slot.state.CompareAndSwap(slotEmpty, slotBusy) {
		return &TrySendError[T]{Value: value, Full: true}
	}
	slot.value = value
	slot.state.Store(slotCommitted)
	sh.pending.Add(1)
	sh.recvParker.Unpark()
	return nil
}

// disconnectRecv marks the channel disconnected and wakes every sender
// currently blocked on a full slot so each can observe recvGone and return
// SendError with its payload, rather than staying parked forever.
func (sh *boundedShared[T]) disconnectRecv() {
	sh.recvGone.Store(true)
	for i := range sh.slots {
		sh.slots[i].waiters.wakeAll()
	}
}

func (sh *boundedShared[T]) claim() (T, bool) {
	if sh.pending.Load() <= 0 {
		var zero T
		return zero, false
	}
	idx := (sh.readerIndex.Add(1) - 1) % sh.size
	slot := &sh.slots[idx]
	for !slot.state.CompareAndSwap(slotCommitted, slotBusy) {
		// A send that already claimed this index is still mid-write; it
		// will commit imminently, so there is nothing to wait-queue on here.
		runtime.Gosched()
	}
	v := slot.value
	var zero T
	slot.value = zero
	slot.state.Store(slotEmpty)
	sh.pending.Add(-1)
	slot.waiters.wakeOne()
	return v, true
}

func (sh *boundedShared[T]) tryRecv() (T, error) {
	if v, ok := sh.claim(); ok {
		return v, nil
	}
	var zero T
	if sh.senders.Load() == 0 {
		return zero, TryRecvError{Disconnected: true}
	}
	return zero, TryRecvError{}
}

func (sh *boundedShared[T]) recvDeadline(deadline time.Time) (T, error) {
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
