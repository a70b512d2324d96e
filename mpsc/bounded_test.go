package mpsc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoundedCapacityBlocksUntilDrained(t *testing.T) {
	tx, rx := SyncChannel[int](2)
	defer tx.Close()

	require.NoError(t, tx.Send(1))
	require.NoError(t, tx.Send(2))

	sent3 := make(chan error, 1)
	go func() {
		sent3 <- tx.Send(3)
	}()

	select {
	case <-sent3:
		t.Fatal("send should have blocked with the buffer full")
	case <-time.After(20 * time.Millisecond):
	}

	v, err := rx.Recv()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	select {
	case err := <-sent3:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked send never unblocked after a slot freed")
	}

	v, err = rx.Recv()
	require.NoError(t, err)
	require.Equal(t, 2, v)

	v, err = rx.Recv()
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestBoundedCapacityNotRoundedToPowerOfTwo(t *testing.T) {
	tx, rx := SyncChannel[int](3)
	defer tx.Close()
	defer rx.Close()

	require.NoError(t, tx.TrySend(1))
	require.NoError(t, tx.TrySend(2))
	require.NoError(t, tx.TrySend(3))

	err := tx.TrySend(4)
	var tryErr *TrySendError[int]
	require.ErrorAs(t, err, &tryErr)
	require.True(t, tryErr.Full, "capacity 3 must reject a 4th unread item, not round up to 4")
}

func TestBoundedTrySendFull(t *testing.T) {
	tx, rx := SyncChannel[int](1)
	defer tx.Close()
	defer rx.Close()

	require.NoError(t, tx.TrySend(1))

	err := tx.TrySend(2)
	var tryErr *TrySendError[int]
	require.ErrorAs(t, err, &tryErr)
	require.True(t, tryErr.Full)
	require.Equal(t, 2, tryErr.Value)
}

func TestBoundedDisconnectWakesBlockedSenders(t *testing.T) {
	tx, rx := SyncChannel[int](1)
	defer tx.Close()

	require.NoError(t, tx.Send(1))

	const blocked = 5
	results := make(chan error, blocked)
	for i := 0; i < blocked; i++ {
		clone := tx.Clone()
		go func(v int) {
			defer clone.Close()
			results <- clone.Send(v)
		}(i)
	}

	// Give every goroutine a chance to actually park on the full slot
	// before the receiver disconnects.
	time.Sleep(20 * time.Millisecond)
	rx.Close()

	for i := 0; i < blocked; i++ {
		select {
		case err := <-results:
			require.Error(t, err)
			var sendErr *SendError[int]
			require.ErrorAs(t, err, &sendErr)
		case <-time.After(time.Second):
			t.Fatal("a sender blocked on a full slot never woke after Receiver.Close")
		}
	}
}

func TestBoundedFIFOOrdering(t *testing.T) {
	tx, rx := SyncChannel[int](4)
	for i := 0; i < 4; i++ {
		require.NoError(t, tx.Send(i))
	}
	tx.Close()

	for i := 0; i < 4; i++ {
		v, err := rx.Recv()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}

	_, err := rx.Recv()
	require.Error(t, err)
}
