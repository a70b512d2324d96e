package mpsc

// sendBackend is implemented by the bounded ring buffer and the
// rendezvous handoff so SyncSender stays one generic type across both,
// the way usync's SyncSender<T> wraps a single Sender<T> regardless of
// the bound it was constructed with.
type sendBackend[T any] interface {
	send(value T) error
	trySend(value T) error
	cloneSender() sendBackend[T]
	closeSender()
}

// SyncSender is the producing half of a synchronous channel: a bounded
// ring buffer, or a rendezvous channel when constructed with capacity 0.
type SyncSender[T any] struct {
	backend sendBackend[T]
}

// String reports an opaque, field-free representation, mirroring the
// reference implementation's Debug impl (which deliberately omits fields
// via finish_non_exhaustive).
func (s *SyncSender[T]) String() string {
	return "SyncSender { .. }"
}

// Send blocks until the channel can accept value or the Receiver
// disconnects.
func (s *SyncSender[T]) Send(value T) error {
	return s.backend.send(value)
}

// TrySend attempts to enqueue value without blocking.
func (s *SyncSender[T]) TrySend(value T) error {
	return s.backend.trySend(value)
}

// Clone returns an additional handle to the same channel, for use by
// another producer goroutine. Each clone must be closed independently.
func (s *SyncSender[T]) Clone() *SyncSender[T] {
	return &SyncSender[T]{backend: s.backend.cloneSender()}
}

// Close releases this SyncSender's handle. Once every clone has been
// closed, a blocked Receiver.Recv wakes and returns RecvError.
func (s *SyncSender[T]) Close() {
	s.backend.closeSender()
}
