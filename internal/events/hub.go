// Package events fans out lightning events published by the wallet module to
// in-process subscribers, keyed by broadcast channel name.
package events

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	KindInvoicePaid   = "invoice_paid"
	KindPaymentSent   = "payment_sent"
	KindChannelOpened = "channel_opened"
	KindChannelClosed = "channel_closed"
)

const (
	defaultHistoryLimit = 256
	subscriberBuffer    = 128
)

type Event struct {
	Seq       int64     `json:"seq"`
	Channel   string    `json:"channel"`
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub keeps a bounded history and never blocks publishers: a subscriber
// whose buffer is full is dropped and its channel closed.
type Hub struct {
	name string

	mu      sync.Mutex
	nextSeq int64
	limit   int
	history []Event
	subs    map[int]chan Event
	nextSub int
}

func NewHub(name string, limit int) *Hub {
	if limit < 1 {
		limit = 1
	}
	return &Hub{
		name:  name,
		limit: limit,
		subs:  make(map[int]chan Event),
	}
}

func (h *Hub) Name() string { return h.name }

func (h *Hub) Publish(kind string, payload any) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	event := Event{
		Seq:       h.nextSeq,
		Channel:   h.name,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	h.history = append(h.history, event)
	if len(h.history) > h.limit {
		h.history = append([]Event(nil), h.history[len(h.history)-h.limit:]...)
	}

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}
	return event
}

// Subscribe returns the retained events newer than fromSeq, a live channel
// and a cancel func. The live channel is closed on cancel or overflow.
func (h *Hub) Subscribe(fromSeq int64) ([]Event, <-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	replay := make([]Event, 0)
	for _, event := range h.history {
		if event.Seq > fromSeq {
			replay = append(replay, event)
		}
	}

	id := h.nextSub
	h.nextSub++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return replay, ch, cancel
}

func (h *Hub) BacklogSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// Broadcaster owns one hub per channel name, created on first use.
type Broadcaster struct {
	mu    sync.Mutex
	limit int
	hubs  map[string]*Hub
}

func NewBroadcaster(limit int) *Broadcaster {
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	return &Broadcaster{limit: limit, hubs: make(map[string]*Hub)}
}

// Hub returns the hub for name. An empty name yields nil: the module was
// configured without a broadcast channel.
func (b *Broadcaster) Hub(name string) *Hub {
	name = strings.TrimSpace(name)
	if b == nil || name == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	hub, ok := b.hubs[name]
	if !ok {
		hub = NewHub(name, b.limit)
		b.hubs[name] = hub
	}
	return hub
}

// Lookup returns the hub for name only if it already exists.
func (b *Broadcaster) Lookup(name string) *Hub {
	name = strings.TrimSpace(name)
	if b == nil || name == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hubs[name]
}

func (b *Broadcaster) Channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.hubs))
	for name := range b.hubs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
