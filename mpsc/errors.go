package mpsc

// SendError is returned from Sender.Send or SyncSender.Send when the
// receiving half of the channel has disconnected. It carries the value
// that could not be delivered so the caller can recover it.
type SendError[T any] struct {
	Value T
}

func (e *SendError[T]) Error() string {
	return "mpsc: send on a disconnected channel"
}

// TrySendError is returned from SyncSender.TrySend. Full means the buffer
// had no room; otherwise the receiver has disconnected.
type TrySendError[T any] struct {
	Value T
	Full  bool
}

func (e *TrySendError[T]) Error() string {
	if e.Full {
		return "mpsc: channel full"
	}
	return "mpsc: send on a disconnected channel"
}

// RecvError is returned from Receiver.Recv when the channel is empty and
// every Sender has disconnected.
type RecvError struct{}

func (RecvError) Error() string {
	return "mpsc: receiving on an empty and disconnected channel"
}

// TryRecvError is returned from Receiver.TryRecv.
type TryRecvError struct {
	// Disconnected is false when the channel is merely empty for now, and
	// true when every Sender has gone and no more values will ever arrive.
	Disconnected bool
}

func (e TryRecvError) Error() string {
	if e.Disconnected {
		return "mpsc: receiving on an empty and disconnected channel"
	}
	return "mpsc: receiving on an empty channel"
}

// RecvTimeoutError is returned from Receiver.RecvTimeout.
type RecvTimeoutError struct {
	TimedOut bool
}

func (e RecvTimeoutError) Error() string {
	if e.TimedOut {
		return "mpsc: timed out waiting on channel"
	}
	return "mpsc: receiving on an empty and disconnected channel"
}
