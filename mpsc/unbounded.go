package mpsc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lockfree/corelock/parker"
)

// unboundedShared is the state an unbounded Sender/Receiver pair agrees on.
// Disconnection is tracked the way Rust's Arc-backed channel tracks it via
// Drop, translated to an explicit refcount: Clone increments senders,
// Close decrements it, and the last Close wakes the receiver so it can
// observe the channel has no one left to feed it.
type unboundedShared[T any] struct {
	pool       *sync.Pool
	q          *queue[T]
	senders    atomic.Int64
	recvGone   atomic.Bool
	recvParker *parker.Parker
}

// Sender is the producing half of an unbounded channel. Sends never block;
// the queue grows to fit whatever hasn't been received yet. A Sender must
// be closed with Close when the goroutine holding it is done sending.
type Sender[T any] struct {
	shared *unboundedShared[T]
}

// Channel returns a connected Sender/Receiver pair backed by an unbounded,
// lock-free FIFO queue. Sends on the returned Sender never block.
func Channel[T any]() (*Sender[T], *Receiver[T]) {
	pool := newQueuePool[T]()
	shared := &unboundedShared[T]{
		pool:       pool,
		q:          newQueue[T](pool),
		recvParker: parker.New(),
	}
	shared.senders.Store(1)
	return &Sender[T]{shared: shared}, &Receiver[T]{backend: shared}
}

// Clone returns an additional handle to the same channel, for use by
// another producer goroutine. Each clone must be closed independently.
func (s *Sender[T]) Clone() *Sender[T] {
	s.shared.senders.Add(1)
	return &Sender[T]{shared: s.shared}
}

// Close releases this Sender's handle. Once every clone of a Sender has
// been closed, a blocked Receiver.Recv wakes and returns RecvError.
func (s *Sender[T]) Close() {
	if s.shared.senders.Add(-1) == 0 {
		s.shared.recvParker.Unpark()
	}
}

// String reports an opaque, field-free representation, mirroring the
// reference implementation's Debug impl (which deliberately omits fields
// via finish_non_exhaustive).
func (s *Sender[T]) String() string {
	return "Sender { .. }"
}

// Send enqueues value. It never blocks, and only fails if the Receiver has
// disconnected.
func (s *Sender[T]) Send(value T) error {
	if s.shared.recvGone.Load() {
		return &SendError[T]{Value: value}
	}
	s.shared.q.push(s.shared.pool, value)
	s.shared.recvParker.Unpark()
	return nil
}

func (sh *unboundedShared[T]) disconnectRecv() {
	sh.recvGone.Store(true)
}

func (sh *unboundedShared[T]) tryRecv() (T, error) {
	if v, ok := sh.q.pop(sh.pool); ok {
		return v, nil
	}
	var zero T
	if sh.senders.Load() == 0 {
		return zero, TryRecvError{Disconnected: true}
	}
	return zero, TryRecvError{}
}

func (sh *unboundedShared[T]) recvDeadline(deadline time.Time) (T, error) {
	for {
		if v, ok := sh.q.pop(sh.pool); ok {
			return v, nil
		}
		if sh.senders.Load() == 0 {
			// A send may have raced in between the last Sender's refcount
			// drop and this check; give the queue one more look.
			if v, ok := sh.q.pop(sh.pool); ok {
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
			if v, ok := sh.q.pop(sh.pool); ok {
				return v, nil
			}
			var zero T
			return zero, RecvTimeoutError{TimedOut: true}
		}
	}
}
