package fanout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHub_DeliversInOrder(t *testing.T) {
	hub := New[int](4)

	ch1, unsub1 := hub.Subscribe()
	defer unsub1()
	ch2, unsub2 := hub.Subscribe()
	defer unsub2()

	require.Equal(t, 2, hub.Len())

	var wg sync.WaitGroup
	collect := func(ch <-chan int, out *[]int) {
		for v := range ch {
			*out = append(*out, v)
		}
	}

	var got1, got2 []int
	wg.Go(func() { collect(ch1, &got1) })
	wg.Go(func() { collect(ch2, &got2) })

	for i := range 100 {
		hub.Publish(i)
	}
	hub.Close()
	wg.Wait()

	require.Len(t, got1, 100)
	require.Equal(t, got1, got2)
	for i, v := range got1 {
		require.Equal(t, i, v)
	}
}

func TestHub_UnsubscribeUnblocksPublisher(t *testing.T) {
	hub := New[int](1)

	_, unsubscribe := hub.Subscribe()

	hub.Publish(1) // fills the buffer

	published := make(chan struct{})
	go func() {
		hub.Publish(2) // blocks: nobody reads
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("publish should block on a full subscriber")
	case <-time.After(50 * time.Millisecond):
	}

	unsubscribe()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe did not unblock publisher")
	}

	require.Equal(t, 0, hub.Len())
	unsubscribe() // idempotent
}

func TestHub_CloseUnblocksPublisher(t *testing.T) {
	hub := New[string](1)
	ch, _ := hub.Subscribe()

	hub.Publish("a")

	done := make(chan struct{})
	go func() {
		hub.Publish("b")
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close did not unblock publisher")
	}

	v, ok := <-ch
	require.True(t, ok)
	require.Equal(t, "a", v)

	_, ok = <-ch
	require.False(t, ok)
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	hub := New[int](0)
	hub.Close()
	hub.Close()

	ch, unsubscribe := hub.Subscribe()
	unsubscribe()

	_, ok := <-ch
	require.False(t, ok)

	require.NotPanics(t, func() { hub.Publish(1) })
}

func TestHub_OnlyFutureValues(t *testing.T) {
	hub := New[int](8)
	hub.Publish(1)

	ch, unsubscribe := hub.Subscribe()
	hub.Publish(2)
	unsubscribe()

	var got []int
	for v := range ch {
		got = append(got, v)
	}
	require.Equal(t, []int{2}, got)
}
