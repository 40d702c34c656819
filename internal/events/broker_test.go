package events

import "testing"

func TestSubscribeAndPublishDelivers(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(4)
	defer sub.Close()

	b.Publish(Event{Kind: KindJobStarted, JobID: "job-1"})

	select {
	case event := <-sub.Events():
		if event.JobID != "job-1" || event.Kind != KindJobStarted {
			t.Errorf("got %+v, want JobID=job-1 Kind=%s", event, KindJobStarted)
		}
	default:
		t.Fatal("expected the published event to be immediately available")
	}
}

func TestPublishDoesNotBlockOnFullSubscriberBuffer(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	defer sub.Close()

	b.Publish(Event{Kind: KindJobStarted, JobID: "1"})
	b.Publish(Event{Kind: KindJobStarted, JobID: "2"}) // buffer full, should drop rather than block

	first := <-sub.Events()
	if first.JobID != "1" {
		t.Errorf("JobID = %q, want %q", first.JobID, "1")
	}

	select {
	case <-sub.Events():
		t.Fatal("expected the second event to have been dropped, not delivered")
	default:
	}
}

func TestCloseDetachesSubscriber(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(4)

	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", b.SubscriberCount())
	}

	sub.Close()
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after Close = %d, want 0", b.SubscriberCount())
	}

	// Publish after close must not panic despite no live subscribers.
	b.Publish(Event{Kind: KindJobStarted})
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	sub.Close()
	sub.Close() // must not panic (close of closed channel)
}

func TestSubscribeDefaultsBufferSize(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(0)
	defer sub.Close()

	if cap(sub.ch) != 16 {
		t.Errorf("buffer capacity = %d, want 16", cap(sub.ch))
	}
}
