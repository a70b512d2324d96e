// Package benchmarks compares this module's primitives against their
// standard-library counterparts, the same producer/consumer shape ZenQ's
// own benchmarks use: a fixed amount of work, run once per contender, timed
// with testing.B instead of hand-rolled timers so `go test -bench` can
// drive it.
package benchmarks

import (
	"sync"
	"testing"

	"github.com/lockfree/corelock/mpsc"
	"github.com/lockfree/corelock/rwlock"
)

const numConcurrentWriters = 4

func BenchmarkRwLockWriteHeavy(b *testing.B) {
	lock := rwlock.New(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g := lock.Lock()
		*g.Value()++
		g.Unlock()
	}
}

func BenchmarkSyncRWMutexWriteHeavy(b *testing.B) {
	var mu sync.RWMutex
	counter := 0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mu.Lock()
		counter++
		mu.Unlock()
	}
	_ = counter
}

func BenchmarkRwLockReadHeavy(b *testing.B) {
	lock := rwlock.New(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g := lock.RLock()
		_ = g.Value()
		g.Unlock()
	}
}

func BenchmarkSyncRWMutexReadHeavy(b *testing.B) {
	var mu sync.RWMutex
	counter := 0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mu.RLock()
		_ = counter
		mu.RUnlock()
	}
}

func BenchmarkUnboundedChannel(b *testing.B) {
	tx, rx := mpsc.Channel[int]()
	epochs := b.N / numConcurrentWriters
	b.ResetTimer()
	for w := 0; w < numConcurrentWriters; w++ {
		clone := tx.Clone()
		go func() {
			defer clone.Close()
			for i := 0; i < epochs; i++ {
				clone.Send(i)
			}
		}()
	}
	tx.Close()
	for i := 0; i < epochs*numConcurrentWriters; i++ {
		rx.Recv()
	}
}

func BenchmarkNativeUnbufferedChannel(b *testing.B) {
	ch := make(chan int)
	epochs := b.N / numConcurrentWriters
	done := make(chan struct{})
	b.ResetTimer()
	for w := 0; w < numConcurrentWriters; w++ {
		go func() {
			for i := 0; i < epochs; i++ {
				ch <- i
			}
			done <- struct{}{}
		}()
	}
	go func() {
		for w := 0; w < numConcurrentWriters; w++ {
			<-done
		}
		close(ch)
	}()
	for range ch {
	}
}
