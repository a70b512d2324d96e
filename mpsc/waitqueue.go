package mpsc

import (
	"sync"

	"github.com/lockfree/corelock/parker"
)

// senderWaiters is a FIFO list of goroutines parked waiting on one ring
// slot (or the sole slot of a rendezvous channel) to free up. It is the
// arbitrarily-many-waiters generalization of ZenQ's ThreadParker: that type
// parks any number of callers against a single semaphore count and wakes
// them one Ready() at a time, but relies on a shared Parker with no queue
// of its own to do it. A Parker only ever holds one outstanding wake token,
// so once more than one sender contends for the same slot concurrently,
// sharing a single Parker between them drops wakeups. senderWaiters gives
// each blocked sender its own node and parker, so wakeOne always resumes
// exactly one specific, oldest-waiting sender instead of racing two
// goroutines for one token.
type senderWaiters struct {
	mu   sync.Mutex
	head *senderWaiter
	tail *senderWaiter
}

type senderWaiter struct {
	p    *parker.Parker
	next *senderWaiter
}

// enqueue registers a new waiter at the back of the queue and returns it.
// The caller must re-check whatever condition it is waiting on after
// enqueueing (and call remove if that check now succeeds) before parking,
// to avoid losing a wakeup that happened between the check and the
// registration.
func (sw *senderWaiters) enqueue() *senderWaiter {
	w := &senderWaiter{p: parker.New()}
	sw.mu.Lock()
	if sw.tail == nil {
		sw.head = w
		sw.tail = w
	} else {
		sw.tail.next = w
		sw.tail = w
	}
	sw.mu.Unlock()
	return w
}

// remove drops target from the queue without waking it, used when the
// caller won admission by some other means before it ever parked.
func (sw *senderWaiters) remove(target *senderWaiter) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.head == target {
		sw.head = target.next
		if sw.head == nil {
			sw.tail = nil
		}
		return
	}
	prev := sw.head
	for prev != nil && prev.next != target {
		prev = prev.next
	}
	if prev != nil {
		prev.next = target.next
		if sw.tail == target {
			sw.tail = prev
		}
	}
}

// wakeOne wakes the single oldest still-queued waiter, if any, mirroring
// ThreadParker.Ready's one-token-per-call contract.
func (sw *senderWaiters) wakeOne() {
	sw.mu.Lock()
	w := sw.head
	if w != nil {
		sw.head = w.next
		if sw.head == nil {
			sw.tail = nil
		}
	}
	sw.mu.Unlock()
	if w != nil {
		w.p.Unpark()
	}
}

// wakeAll drains and wakes every currently queued waiter, used when the
// receiver disconnects so no blocked sender is left parked forever.
func (sw *senderWaiters) wakeAll() {
	sw.mu.Lock()
	w := sw.head
	sw.head, sw.tail = nil, nil
	sw.mu.Unlock()
	for w != nil {
		w.p.Unpark()
		w = w.next
	}
}
