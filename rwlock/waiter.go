package rwlock

import (
	"sync/atomic"
	"unsafe"

	"github.com/lockfree/corelock/parker"
)

// Bit layout of the packed lock word, lowest bit first. See lockword.go for
// the transition protocol built on top of these bits.
const (
	unlocked    = uintptr(0)
	locked      = uintptr(1)
	reading     = uintptr(2)
	queued      = uintptr(4)
	queueLocked = uintptr(8)

	// readerShift is also the required trailing-zero-bit count of a waiter's
	// address: the upper bits of the word alias either a reader count or a
	// pointer to the queue head, and a pointer can only be packed in there if
	// its low readerShift bits are always zero.
	readerShift = 4

	singleReader = locked | reading | (uintptr(1) << readerShift)

	// negLocked is locked's two's complement, used to subtract it via
	// atomic.Uintptr.Add (which has no fetch_sub).
	negLocked = ^(locked - 1)

	roleReader = uintptr(0)
	roleWriter = uintptr(1)
)

// waiterAlign is the alignment every waiter must satisfy to pack into the
// lock word's upper bits alongside LOCKED|READING|QUEUED|QUEUE_LOCKED.
const waiterAlign = uintptr(1) << readerShift

// waiterMask covers every bit the pointer occupies, i.e. everything except
// the four status bits.
const waiterMask = ^(waiterAlign - 1)

// waiter is a thread-local node, alive for the duration of exactly one
// acquire attempt. It is only ever reachable from the lock word while the
// owning goroutine is parked on it, and the owning goroutine keeps a typed
// *waiter reference live on its own stack for that whole span — which is
// what keeps the object alive even though other goroutines only ever see it
// as a tagged uintptr inside the lock word.
type waiter struct {
	parker *parker.Parker

	// prev/next/tail are intrusive links, mutated only by whichever
	// goroutine currently holds QUEUE_LOCKED. next always points toward
	// older entries (away from the head); prev points toward the head;
	// tail is a cache of the queue's tail node, valid only on the head.
	prev unsafe.Pointer // *waiter
	next unsafe.Pointer // *waiter
	tail unsafe.Pointer // *waiter

	waitingOn uintptr // address of the lock word this node is parked on (debug check)
	flags     uintptr // roleReader or roleWriter

	// counter is the scratch slot used on the head waiter to hold the
	// reader count that was in flight at the moment the queue was first
	// installed (see the "Reader count living in two places" design note).
	counter atomic.Int64

	// padding pushes the struct well past one pointer word so allocations
	// land comfortably inside a size class aligned to waiterAlign; see
	// newWaiter for the belt-and-suspenders runtime check.
	_ [64]byte
}

// newWaiter allocates a waiter satisfying waiterAlign. Go does not guarantee
// 16-byte alignment for arbitrary heap types the way Rust's `#[repr(align)]`
// does, so this defends against the rare size class that doesn't happen to
// land on a 16-byte boundary by falling back to carving an aligned waiter
// out of a small over-allocated block.
func newWaiter() *waiter {
	w := allocAlignedWaiter()
	w.parker = parker.New()
	return w
}

func allocAlignedWaiter() *waiter {
	w := new(waiter)
	if uintptr(unsafe.Pointer(w))&(waiterAlign-1) == 0 {
		return w
	}
	block := make([]waiter, 2)
	for i := range block {
		if uintptr(unsafe.Pointer(&block[i]))&(waiterAlign-1) == 0 {
			return &block[i]
		}
	}
	panic("rwlock: could not obtain a waiter aligned to waiterAlign")
}

func waiterFromBits(state uintptr) *waiter {
	return (*waiter)(unsafe.Pointer(state & waiterMask))
}

func (w *waiter) addr() uintptr {
	return uintptr(unsafe.Pointer(w))
}

func (w *waiter) loadPrev() *waiter { return (*waiter)(atomic.LoadPointer(&w.prev)) }
func (w *waiter) storePrev(v *waiter) {
	atomic.StorePointer(&w.prev, unsafe.Pointer(v))
}

func (w *waiter) loadNext() *waiter { return (*waiter)(atomic.LoadPointer(&w.next)) }
func (w *waiter) storeNext(v *waiter) {
	atomic.StorePointer(&w.next, unsafe.Pointer(v))
}

func (w *waiter) loadTail() *waiter { return (*waiter)(atomic.LoadPointer(&w.tail)) }
func (w *waiter) storeTail(v *waiter) {
	atomic.StorePointer(&w.tail, unsafe.Pointer(v))
}

func (w *waiter) isWriter() bool { return w.flags == roleWriter }
