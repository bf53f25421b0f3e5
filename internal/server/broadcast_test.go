package server

import (
	"testing"

	"shelfrank/internal/cycle"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	if n := b.SubscriberCount(); n != 2 {
		t.Fatalf("SubscriberCount: got %d, want 2", n)
	}

	b.Notify(cycle.Event{Stage: cycle.StageClean, Message: "starting"})

	for i, ch := range []<-chan cycle.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Stage != cycle.StageClean {
				t.Errorf("subscriber %d: got stage %q", i, e.Stage)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestBroadcaster_CancelClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()

	cancel()
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount after cancel: got %d", n)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// A second cancel must not panic on the already closed channel
	cancel()
}

func TestBroadcaster_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	// One more event than the buffer holds; Notify must not block
	for i := 0; i < subscriberBuffer+1; i++ {
		b.Notify(cycle.Event{Stage: cycle.StageAcquire, Current: i})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Errorf("received: got %d, want %d", received, subscriberBuffer)
	}
}

func TestBroadcaster_NotifyWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster()
	b.Notify(cycle.Event{Stage: cycle.StagePublish})
}

func TestLimiterPool_BurstAndIsolation(t *testing.T) {
	pool := newLimiterPool(1, 2)

	if !pool.allow("alice") || !pool.allow("alice") {
		t.Fatal("burst of 2 should admit two immediate requests")
	}
	if pool.allow("alice") {
		t.Error("third immediate request should be limited")
	}

	// Keys are limited independently
	if !pool.allow("bob") {
		t.Error("fresh key should not share alice's limiter")
	}
}
