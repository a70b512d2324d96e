package mpsc

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnboundedFIFOAcrossProducers(t *testing.T) {
	const producers = 3
	const perProducer = 200

	tx, rx := Channel[int]()
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		clone := tx.Clone()
		go func() {
			defer wg.Done()
			defer clone.Close()
			for i := 0; i < perProducer; i++ {
				require.NoError(t, clone.Send(p*perProducer+i))
			}
		}()
	}
	tx.Close()
	wg.Wait()

	got := make([]int, 0, producers*perProducer)
	for {
		v, err := rx.Recv()
		if err != nil {
			require.ErrorIs(t, err, RecvError{})
			break
		}
		got = append(got, v)
	}
	require.Len(t, got, producers*perProducer)

	// Each producer's values must arrive in the order it sent them.
	next := make([]int, producers)
	for _, v := range got {
		p := v / perProducer
		require.Equal(t, next[p], v%perProducer, "producer %d's values arrived out of order", p)
		next[p]++
	}

	sort.Ints(got)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestUnboundedTryRecvEmpty(t *testing.T) {
	tx, rx := Channel[string]()
	defer tx.Close()

	_, err := rx.TryRecv()
	var tryErr TryRecvError
	require.ErrorAs(t, err, &tryErr)
	require.False(t, tryErr.Disconnected)

	require.NoError(t, tx.Send("hello"))
	v, err := rx.TryRecv()
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestUnboundedDisconnectWakesReceiver(t *testing.T) {
	tx, rx := Channel[int]()

	done := make(chan error, 1)
	go func() {
		_, err := rx.Recv()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tx.Close()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("receiver never woke after the last sender closed")
	}
}

func TestUnboundedSendAfterReceiverClosed(t *testing.T) {
	tx, rx := Channel[int]()
	rx.Close()

	err := tx.Send(1)
	var sendErr *SendError[int]
	require.ErrorAs(t, err, &sendErr)
	require.Equal(t, 1, sendErr.Value)
}

func TestUnboundedIter(t *testing.T) {
	tx, rx := Channel[int]()
	go func() {
		for i := 0; i < 5; i++ {
			_ = tx.Send(i)
		}
		tx.Close()
	}()

	var got []int
	it := rx.Iter()
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}
