package mpsc

import "time"

// recvBackend is implemented by each channel flavor's shared state so
// Receiver can stay a single generic type across channel(), sync_channel(),
// and the rendezvous (bound == 0) special case, the way usync's mpsc module
// keeps one Receiver<T> for all three.
type recvBackend[T any] interface {
	tryRecv() (T, error)
	recvDeadline(deadline time.Time) (T, error)
	disconnectRecv()
}

// Receiver is the single consuming half of a channel, regardless of which
// flavor produced it.
type Receiver[T any] struct {
	backend recvBackend[T]
}

// TryRecv returns immediately with a value if one is queued, or a
// TryRecvError reporting whether the channel is merely empty or every
// Sender has disconnected.
func (r *Receiver[T]) TryRecv() (T, error) {
	return r.backend.tryRecv()
}

// Recv blocks until a value arrives or every Sender has disconnected.
func (r *Receiver[T]) Recv() (T, error) {
	return r.backend.recvDeadline(time.Time{})
}

// RecvTimeout blocks until a value arrives, every Sender disconnects, or
// timeout elapses, in which case it returns a RecvTimeoutError with
// TimedOut set; on disconnect the RecvTimeoutError has TimedOut unset. A
// timeout already in the past falls back to a single non-blocking attempt,
// matching the reference implementation's recv_deadline.
func (r *Receiver[T]) RecvTimeout(timeout time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)
	if timeout <= 0 {
		v, err := r.backend.tryRecv()
		if err == nil {
			return v, nil
		}
		if tryErr, ok := err.(TryRecvError); ok && !tryErr.Disconnected {
			var zero T
			return zero, RecvTimeoutError{TimedOut: true}
		}
		var zero T
		return zero, RecvTimeoutError{}
	}
	v, err := r.backend.recvDeadline(deadline)
	if _, ok := err.(RecvError); ok {
		var zero T
		return zero, RecvTimeoutError{}
	}
	return v, err
}

// Close disconnects the Receiver: further Sends on this channel fail.
func (r *Receiver[T]) Close() {
	r.backend.disconnectRecv()
}

// Iter returns a blocking iterator over the channel's values.
func (r *Receiver[T]) Iter() *Iter[T] {
	return &Iter[T]{rx: r}
}

// TryIter returns a non-blocking iterator that stops as soon as the queue
// is momentarily empty.
func (r *Receiver[T]) TryIter() *TryIter[T] {
	return &TryIter[T]{rx: r}
}

// Iter is produced by Receiver.Iter. This iterator blocks on each Next,
// waiting for a new message, and reports done once the channel disconnects.
type Iter[T any] struct {
	rx *Receiver[T]
}

func (it *Iter[T]) Next() (value T, ok bool) {
	v, err := it.rx.Recv()
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// TryIter is produced by Receiver.TryIter. It never blocks, reporting done
// as soon as the channel is momentarily empty.
type TryIter[T any] struct {
	rx *Receiver[T]
}

func (it *TryIter[T]) Next() (value T, ok bool) {
	v, err := it.rx.TryRecv()
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}
