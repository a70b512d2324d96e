// Package mpsc provides multi-producer, single-consumer channels built on
// the same parker primitive as package rwlock, instead of native Go
// channels backed by the runtime scheduler's own wait queues.
//
// Three flavors are available:
//
//   - Channel returns an unbounded pair; Send never blocks, and the queue
//     grows to whatever hasn't been received yet.
//   - SyncChannel returns a bounded pair backed by a fixed-size ring
//     buffer; Send blocks until there is room.
//   - SyncChannel with a capacity of 0, or RendezvousChannel directly,
//     returns a pair with no buffering at all: Send blocks until a
//     matching Recv has taken the value out.
//
// Every Sender and SyncSender is cloneable for use by multiple producer
// goroutines; each clone must be closed independently with Close once that
// goroutine is done sending. Once every clone of a channel's sending half
// has been closed, a Receiver blocked in Recv wakes and returns RecvError.
package mpsc
