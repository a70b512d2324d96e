package mpsc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRendezvousHandoffBlocksUntilReceived(t *testing.T) {
	tx, rx := RendezvousChannel[int]()
	defer tx.Close()

	sendReturned := make(chan struct{})
	go func() {
		require.NoError(t, tx.Send(7))
		close(sendReturned)
	}()

	select {
	case <-sendReturned:
		t.Fatal("Send must not return before a Recv claims the value")
	case <-time.After(20 * time.Millisecond):
	}

	v, err := rx.Recv()
	require.NoError(t, err)
	require.Equal(t, 7, v)

	select {
	case <-sendReturned:
	case <-time.After(time.Second):
		t.Fatal("Send never returned after the value was received")
	}
}

func TestRendezvousViaSyncChannelZero(t *testing.T) {
	tx, rx := SyncChannel[int](0)
	defer tx.Close()

	go func() { _ = tx.Send(1) }()

	v, err := rx.Recv()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestRendezvousTrySendWithoutWaitingReceiver(t *testing.T) {
	tx, rx := RendezvousChannel[int]()
	defer tx.Close()
	defer rx.Close()

	err := tx.TrySend(1)
	var tryErr *TrySendError[int]
	require.ErrorAs(t, err, &tryErr)
	require.True(t, tryErr.Full)
}

func TestRendezvousDisconnect(t *testing.T) {
	tx, rx := RendezvousChannel[int]()
	tx.Close()

	_, err := rx.Recv()
	require.Error(t, err)
}

func TestRendezvousDisconnectWakesCommittedSender(t *testing.T) {
	tx, rx := RendezvousChannel[int]()
	defer tx.Close()

	sent := make(chan error, 1)
	go func() {
		// Nobody ever calls rx.Recv, so once this commits it can only be
		// unblocked by the receiver disconnecting.
		sent <- tx.Send(1)
	}()

	time.Sleep(20 * time.Millisecond)
	rx.Close()

	select {
	case err := <-sent:
		require.Error(t, err)
		var sendErr *SendError[int]
		require.ErrorAs(t, err, &sendErr)
		require.Equal(t, 1, sendErr.Value)
	case <-time.After(time.Second):
		t.Fatal("sender holding a committed rendezvous value never woke after Receiver.Close")
	}
}

func TestRendezvousDisconnectWakesBlockedSenders(t *testing.T) {
	tx, rx := RendezvousChannel[int]()
	defer tx.Close()

	// Occupy the single slot with a commit nobody will ever claim, so
	// every later Send blocks in the admission queue, not the drain wait.
	holder := tx.Clone()
	go func() { _ = holder.Send(0) }()
	time.Sleep(10 * time.Millisecond)

	const blocked = 4
	results := make(chan error, blocked)
	for i := 0; i < blocked; i++ {
		clone := tx.Clone()
		go func(v int) {
			defer clone.Close()
			results <- clone.Send(v)
		}(i + 1)
	}

	time.Sleep(20 * time.Millisecond)
	rx.Close()

	for i := 0; i < blocked; i++ {
		select {
		case err := <-results:
			require.Error(t, err)
		case <-time.After(time.Second):
			t.Fatal("a sender blocked waiting to claim the rendezvous slot never woke after Receiver.Close")
		}
	}
}
