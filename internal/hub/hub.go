package hub

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/reviewapps-dev/relay/internal/events"
)

const (
	DefaultSnapshotLimit = 50
	DefaultSendBuffer    = 64
)

// FrameState reports whether a frame has been published yet.
type FrameState interface {
	HasFrame() bool
}

// Status is the first message every subscriber receives.
type Status struct {
	HasFrame bool           `json:"hasFrame"`
	Events   []events.Event `json:"events"`
}

// Hub tracks connected subscribers and fans messages out to them. Sends are
// queued per subscriber, never written under the registry lock; a subscriber
// whose queue is full is dropped.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber

	// pubMu orders event publishes against each other and against the
	// status replay done on subscribe.
	pubMu sync.Mutex

	log           *events.Log
	frames        FrameState
	snapshotLimit int

	dropped atomic.Uint64
}

func New(eventLog *events.Log, frames FrameState, snapshotLimit int) *Hub {
	if snapshotLimit <= 0 {
		snapshotLimit = DefaultSnapshotLimit
	}
	return &Hub{
		subs:          make(map[string]*Subscriber),
		log:           eventLog,
		frames:        frames,
		snapshotLimit: snapshotLimit,
	}
}

// Subscribe queues the status payload for s and then registers it, so status
// is always the first message s receives.
func (h *Hub) Subscribe(s *Subscriber) Status {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	status := Status{
		HasFrame: h.frames != nil && h.frames.HasFrame(),
		Events:   h.log.Snapshot(h.snapshotLimit),
	}

	if err := s.deliver(Message{Type: "status", Data: status}); err != nil {
		h.drop(s, err)
		return status
	}

	h.mu.Lock()
	h.subs[s.ID()] = s
	h.mu.Unlock()
	return status
}

// Unsubscribe removes s and closes its message channel. Safe to call more
// than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if cur, ok := h.subs[s.ID()]; ok && cur == s {
		delete(h.subs, s.ID())
	}
	h.mu.Unlock()
	s.close()
}

// PublishEvent appends fields to the event log and broadcasts the stored event.
func (h *Hub) PublishEvent(fields map[string]any) events.Event {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	ev := h.log.Append(fields)
	h.Broadcast(ev)
	return ev
}

// Broadcast sends ev to every subscriber of the events topic.
func (h *Hub) Broadcast(ev events.Event) {
	msg := Message{Type: "detection", Data: ev}
	for _, s := range h.snapshot(TopicEvents, "") {
		if err := s.deliver(msg); err != nil {
			h.drop(s, err)
		}
	}
}

// BroadcastExcept sends msg to every signaling subscriber other than senderID.
func (h *Hub) BroadcastExcept(senderID string, msg Message) int {
	n := 0
	for _, s := range h.snapshot(TopicSignaling, senderID) {
		if err := s.deliver(msg); err != nil {
			h.drop(s, err)
			continue
		}
		n++
	}
	return n
}

// Dropped returns how many subscribers were removed for failed delivery.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for id, s := range h.subs {
		subs = append(subs, s)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

func (h *Hub) snapshot(topic Topic, except string) []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Subscriber, 0, len(h.subs))
	for id, s := range h.subs {
		if id == except || !s.Wants(topic) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (h *Hub) drop(s *Subscriber, err error) {
	if errors.Is(err, ErrClosed) {
		// already removed, possibly mid-broadcast
		return
	}
	log.Printf("hub: dropping subscriber %s: %v", s.ID(), err)
	h.dropped.Add(1)
	h.Unsubscribe(s)
}
