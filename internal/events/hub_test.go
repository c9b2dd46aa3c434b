package events

import "testing"

func TestHubReplaysFromSequence(t *testing.T) {
	hub := NewHub("ln", 2)
	hub.Publish(KindInvoicePaid, "a")
	hub.Publish(KindPaymentSent, "b")
	hub.Publish(KindChannelOpened, "c")

	if got := hub.BacklogSize(); got != 2 {
		t.Fatalf("expected bounded backlog of 2, got %d", got)
	}
	replay, _, cancel := hub.Subscribe(2)
	defer cancel()
	if len(replay) != 1 || replay[0].Kind != KindChannelOpened || replay[0].Seq != 3 {
		t.Fatalf("unexpected replay: %#v", replay)
	}
	if replay[0].Channel != "ln" {
		t.Fatalf("expected channel name on event, got %q", replay[0].Channel)
	}
}

func TestHubLiveDeliveryAndCancel(t *testing.T) {
	hub := NewHub("ln", 8)
	_, live, cancel := hub.Subscribe(0)
	hub.Publish(KindInvoicePaid, map[string]any{"payment_hash": "h"})

	event, ok := <-live
	if !ok || event.Kind != KindInvoicePaid {
		t.Fatalf("expected live invoice_paid event, got %#v ok=%v", event, ok)
	}
	cancel()
	if _, ok := <-live; ok {
		t.Fatal("expected channel closed after cancel")
	}
	cancel()
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub("ln", 1)
	_, live, cancel := hub.Subscribe(0)
	defer cancel()
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Publish(KindPaymentSent, i)
	}
	drained := 0
	for range live {
		drained++
	}
	if drained != subscriberBuffer {
		t.Fatalf("expected %d buffered events before drop, got %d", subscriberBuffer, drained)
	}
}

func TestBroadcasterHubsByName(t *testing.T) {
	b := NewBroadcaster(0)
	if b.Hub("  ") != nil {
		t.Fatal("expected nil hub for empty channel name")
	}
	first := b.Hub("joyid_ln_event_broadcast_channel")
	second := b.Hub("joyid_ln_event_broadcast_channel")
	if first == nil || first != second {
		t.Fatal("expected the same hub for the same name")
	}
	b.Hub("other")
	channels := b.Channels()
	if len(channels) != 2 || channels[0] != "joyid_ln_event_broadcast_channel" || channels[1] != "other" {
		t.Fatalf("unexpected channels: %v", channels)
	}
}

func TestBroadcasterLookupDoesNotCreate(t *testing.T) {
	b := NewBroadcaster(0)
	if b.Lookup("ln_events") != nil {
		t.Fatal("lookup of an unknown channel must miss")
	}
	if len(b.Channels()) != 0 {
		t.Fatalf("lookup created a hub: %v", b.Channels())
	}
	hub := b.Hub("ln_events")
	if got := b.Lookup(" ln_events "); got != hub {
		t.Fatal("lookup must return the existing hub")
	}
	var nilBroadcaster *Broadcaster
	if nilBroadcaster.Lookup("ln_events") != nil {
		t.Fatal("nil broadcaster must have no hubs")
	}
}
