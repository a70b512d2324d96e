package rwlock

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"
)

// rawRwLock is a single packed atomic word implementing a reader-writer
// lock together with an intrusive, lazily-linked wait queue for the
// goroutines it blocks. It carries no value of its own; RwLock[T] below
// pairs one with a T and exposes the guard-based public API.
//
// State layout (low bits first): LOCKED, READING, QUEUED, QUEUE_LOCKED,
// then either a reader count (no one queued) or a waiter pointer (someone
// is) in the remaining high bits. See waiter.go for the bit constants.
type rawRwLock struct {
	state atomic.Uintptr
}

func (l *rawRwLock) isLocked() bool {
	return l.state.Load()&locked != 0
}

func (l *rawRwLock) isLockedExclusive() bool {
	return l.state.Load()&(locked|reading) == locked
}

func (l *rawRwLock) tryLockExclusive() bool {
	return l.state.CompareAndSwap(unlocked, locked)
}

func (l *rawRwLock) lockExclusive() {
	if !l.state.CompareAndSwap(unlocked, locked) {
		l.lockExclusiveSlow()
	}
}

// unlockExclusive releases a write lock taken by lockExclusive/tryLockExclusive.
// Per the resolved Open Question on the unlock variant, this always issues
// the fetch_sub-style release unconditionally rather than retrying a CAS,
// since a write holder is the only one ever allowed to clear LOCKED.
func (l *rawRwLock) unlockExclusive() {
	// atomic.Uintptr has no fetch_sub, so emulate it: Add returns the new
	// value, and negLocked is locked's two's complement (all ones, since
	// locked is 1), i.e. adding it is subtracting locked from the word.
	newState := l.state.Add(negLocked)
	state := newState + locked
	if state&(queued|queueLocked) == queued {
		l.unlockExclusiveSlow(state)
	}
}

// unlockExclusiveSlow receives the pre-release state (LOCKED still set, as
// observed by the fetch_sub above) and corrects it locally, mirroring the
// fast-path unlock's contract instead of re-reading the word.
func (l *rawRwLock) unlockExclusiveSlow(state uintptr) {
	state -= locked
	for state&(locked|queued|queueLocked) == queued {
		newState := state | queueLocked
		if l.state.CompareAndSwap(state, newState) {
			l.unpark(newState)
			return
		}
		state = l.state.Load()
	}
}

func (l *rawRwLock) tryLockSharedAssuming(state uintptr) (newState uintptr, matched, ok bool) {
	switch {
	case state == unlocked:
		return singleReader, true, l.state.CompareAndSwap(unlocked, singleReader)
	case state&(locked|reading|queued) == (locked | reading):
		withReader := state + (1 << readerShift)
		if withReader < state {
			// reader count would overflow the word; reject like the
			// original's checked_add does.
			return 0, false, false
		}
		return withReader, true, l.state.CompareAndSwap(state, withReader)
	default:
		return 0, false, false
	}
}

func (l *rawRwLock) tryLockSharedFast() bool {
	state := l.state.Load()
	_, matched, ok := l.tryLockSharedAssuming(state)
	return matched && ok
}

func (l *rawRwLock) tryLockShared() bool {
	if l.tryLockSharedFast() {
		return true
	}
	state := l.state.Load()
	for {
		_, matched, ok := l.tryLockSharedAssuming(state)
		if !matched {
			return false
		}
		if ok {
			return true
		}
		state = l.state.Load()
	}
}

func (l *rawRwLock) lockShared() {
	if !l.tryLockSharedFast() {
		l.lockSharedSlow()
	}
}

func (l *rawRwLock) unlockShared() {
	state := l.state.Load()
	if state == singleReader && l.state.CompareAndSwap(singleReader, unlocked) {
		return
	}
	l.unlockSharedSlow(state)
}

func (l *rawRwLock) unlockSharedSlow(state uintptr) {
	for state&queued == 0 {
		newState := state - (1 << readerShift)
		if state == singleReader {
			if l.state.CompareAndSwap(singleReader, unlocked) {
				return
			}
			state = l.state.Load()
			continue
		}
		if l.state.CompareAndSwap(state, newState) {
			return
		}
		state = l.state.Load()
	}

	// A queue is installed: the departing reader count lives on the
	// queue's tail node rather than in the word itself (see "lock" below),
	// so releasing means decrementing that cached counter. Reaching zero
	// there clears LOCKED and READING and is then handled like a writer
	// releasing LOCKED, per the resolved Open Question treating
	// last-reader-out as a writer-style release.
	_, tail := l.getAndLinkQueue(state)
	remaining := tail.counter.Add(-1)
	if remaining > 0 {
		return
	}

	for {
		state = l.state.Load()
		newState := (state &^ (locked | reading)) | queueLocked
		if state&queueLocked != 0 {
			newState = state &^ (locked | reading)
		}
		if l.state.CompareAndSwap(state, newState) {
			if state&queueLocked == 0 {
				l.unpark(newState)
			}
			return
		}
	}
}

// lock is the generic slow-path driver shared by lockExclusive and
// lockShared: spin briefly, then park on the intrusive wait queue.
func (l *rawRwLock) lock(isWriter bool, tryLock func(state uintptr) (acquired bool, retry bool)) {
	w := newWaiter()
	if isWriter {
		w.flags = roleWriter
	} else {
		w.flags = roleReader
	}

	for {
		state := l.state.Load()
		spins := 0

		for {
			for {
				acquired, retry := tryLock(state)
				if acquired {
					return
				}
				if !retry {
					break
				}
				runtime.Gosched()
				state = l.state.Load()
			}

			if state&queued == 0 && spins < 40 {
				spins++
				runtime.Gosched()
				state = l.state.Load()
				continue
			}

			waiterAddr := w.addr()
			newState := (state &^ waiterMask) | waiterAddr | queued

			if state&queued == 0 {
				w.counter.Store(int64(state >> readerShift))
				w.storeTail(w)
				w.storeNext(nil)
			} else {
				newState |= queueLocked
				w.storeTail(nil)
				w.storeNext(waiterFromBits(state))
			}
			w.storePrev(nil)

			if !l.state.CompareAndSwap(state, newState) {
				state = l.state.Load()
				continue
			}

			if state&(queued|queueLocked) == queued {
				l.linkQueueOrUnpark(newState)
			}

			w.waitingOn = uintptr(unsafe.Pointer(&l.state))
			w.parker.Park(time.Time{})
			break
		}
	}
}

func (l *rawRwLock) lockExclusiveSlow() {
	l.lock(true, func(state uintptr) (bool, bool) {
		if state&locked != 0 {
			return false, false
		}
		return l.lockExclusiveFastAssuming(state), true
	})
}

func (l *rawRwLock) lockExclusiveFastAssuming(state uintptr) bool {
	return l.state.CompareAndSwap(state, state|locked)
}

func (l *rawRwLock) lockSharedSlow() {
	l.lock(false, func(state uintptr) (bool, bool) {
		_, matched, ok := l.tryLockSharedAssuming(state)
		if !matched {
			return false, false
		}
		return ok, true
	})
}

// getAndLinkQueue walks the queue starting at the waiter whose address is
// packed into state, repairing prev links and caching the tail on head as
// it goes. The queue is only ever pushed at the head (in lock),
// so the tail (oldest waiter, first in FIFO order) is discovered by
// following next pointers and must have its prev pointers patched up
// before anything can walk back from tail to head.
func (l *rawRwLock) getAndLinkQueue(state uintptr) (head, tail *waiter) {
	head = waiterFromBits(state)
	current := head
	for {
		if t := current.loadTail(); t != nil {
			tail = t
			break
		}
		next := current.loadNext()
		next.storePrev(current)
		current = next
	}
	head.storeTail(tail)
	return head, tail
}

func (l *rawRwLock) linkQueueOrUnpark(state uintptr) {
	for {
		if state&locked == 0 {
			l.unpark(state)
			return
		}

		l.getAndLinkQueue(state)

		newState := state &^ queueLocked
		if l.state.CompareAndSwap(state, newState) {
			return
		}
		state = l.state.Load()
	}
}

func (l *rawRwLock) unpark(state uintptr) {
	for {
		if state&locked != 0 {
			newState := state &^ queueLocked
			if l.state.CompareAndSwap(state, newState) {
				return
			}
			state = l.state.Load()
			continue
		}

		head, tail := l.getAndLinkQueue(state)

		if tail.isWriter() {
			if newTail := tail.loadPrev(); newTail != nil {
				head.storeTail(newTail)
				l.clearBit(queueLocked)
				tail.storePrev(nil)
				l.unparkWaiters(tail)
				return
			}
		}

		newState := state &^ (waiterMask | queued | queueLocked)
		if l.state.CompareAndSwap(state, newState) {
			l.unparkWaiters(tail)
			return
		}
		state = l.state.Load()
	}
}

// clearBit clears the given bit atomically. atomic.Uintptr has no fetch_and,
// so this is a small CAS retry loop standing in for one.
func (l *rawRwLock) clearBit(bit uintptr) {
	for {
		state := l.state.Load()
		if l.state.CompareAndSwap(state, state&^bit) {
			return
		}
	}
}

func (l *rawRwLock) unparkWaiters(tail *waiter) {
	for {
		prev := tail.loadPrev()
		tail.parker.Unpark()
		if prev == nil {
			return
		}
		tail = prev
	}
}
