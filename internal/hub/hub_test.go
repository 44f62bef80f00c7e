package hub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewapps-dev/relay/internal/events"
)

type fakeFrames bool

func (f fakeFrames) HasFrame() bool { return bool(f) }

func newTestHub() *Hub {
	return New(events.NewLog(events.DefaultMaxEvents), fakeFrames(false), DefaultSnapshotLimit)
}

// drain returns every message currently queued for s.
func drain(s *Subscriber) []Message {
	var out []Message
	for {
		select {
		case msg, ok := <-s.Messages():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

// ============================================================================
// Subscribe / status replay
// ============================================================================

func TestSubscribe_StatusIsFirstMessage(t *testing.T) {
	h := New(events.NewLog(10), fakeFrames(true), DefaultSnapshotLimit)
	s := NewSubscriber(8)

	status := h.Subscribe(s)
	assert.True(t, status.HasFrame)
	assert.Empty(t, status.Events)

	msgs := drain(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "status", msgs[0].Type)
	assert.Equal(t, status, msgs[0].Data)
	assert.Equal(t, 1, h.Count())
}

func TestSubscribe_LateJoinerSeesDetection(t *testing.T) {
	h := newTestHub()
	a := NewSubscriber(8)
	h.Subscribe(a)

	h.PublishEvent(map[string]any{"label": "person", "confidence": 0.92})

	msgs := drain(a)
	require.Len(t, msgs, 2)
	assert.Equal(t, "detection", msgs[1].Type)

	b := NewSubscriber(8)
	status := h.Subscribe(b)
	require.Len(t, status.Events, 1)
	assert.Equal(t, "person", status.Events[0].Label())
	assert.Equal(t, "person 92%", status.Events[0].Summary())
}

func TestSubscribe_SnapshotLimit(t *testing.T) {
	h := New(events.NewLog(100), fakeFrames(false), 5)
	for i := 0; i < 20; i++ {
		h.PublishEvent(map[string]any{"n": i})
	}
	status := h.Subscribe(NewSubscriber(1))
	require.Len(t, status.Events, 5)
	assert.Equal(t, 19, status.Events[0].Fields["n"])
}

// ============================================================================
// Broadcast
// ============================================================================

func TestBroadcast_PreservesAppendOrder(t *testing.T) {
	h := newTestHub()
	s := NewSubscriber(200)
	h.Subscribe(s)
	drain(s)

	for i := 0; i < 100; i++ {
		h.PublishEvent(map[string]any{"n": i})
	}

	msgs := drain(s)
	require.Len(t, msgs, 100)
	for i, msg := range msgs {
		ev := msg.Data.(events.Event)
		assert.Equal(t, i, ev.Fields["n"])
	}
}

func TestBroadcast_SlowSubscriberDroppedOthersServed(t *testing.T) {
	h := newTestHub()
	slow := NewSubscriber(1) // status fills it
	fast := NewSubscriber(8)
	h.Subscribe(slow)
	h.Subscribe(fast)
	drain(fast)

	h.PublishEvent(map[string]any{"label": "cat"})

	assert.Equal(t, 1, h.Count())
	msgs := drain(fast)
	require.Len(t, msgs, 1)
	assert.Equal(t, "detection", msgs[0].Type)

	// slow still has its status queued, then its channel is closed
	slowMsgs := drain(slow)
	require.Len(t, slowMsgs, 1)
	_, open := <-slow.Messages()
	assert.False(t, open)
}

func TestBroadcast_RemovedSubscriberReceivesNothing(t *testing.T) {
	h := newTestHub()
	s := NewSubscriber(8)
	h.Subscribe(s)
	drain(s)
	h.Unsubscribe(s)
	h.Unsubscribe(s)

	assert.NotPanics(t, func() {
		h.PublishEvent(map[string]any{"label": "x"})
	})
	assert.Equal(t, 0, h.Count())
	assert.Empty(t, drain(s))
}

func TestBroadcast_ConcurrentMutation(t *testing.T) {
	h := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s := NewSubscriber(4)
				h.Subscribe(s)
				h.Unsubscribe(s)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.PublishEvent(map[string]any{"n": j})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 400, h.log.Len())
}

func TestBroadcast_TopicFilter(t *testing.T) {
	h := newTestHub()
	sigOnly := NewSubscriber(8, TopicSignaling)
	h.Subscribe(sigOnly)
	drain(sigOnly)

	h.PublishEvent(map[string]any{"label": "x"})
	assert.Empty(t, drain(sigOnly))

	n := h.BroadcastExcept("someone-else", Message{Type: "offer"})
	assert.Equal(t, 1, n)
	assert.Len(t, drain(sigOnly), 1)
}

// ============================================================================
// BroadcastExcept
// ============================================================================

func TestBroadcastExcept_SkipsSender(t *testing.T) {
	h := newTestHub()
	a, b, c := NewSubscriber(8), NewSubscriber(8), NewSubscriber(8)
	for _, s := range []*Subscriber{a, b, c} {
		h.Subscribe(s)
		drain(s)
	}

	n := h.BroadcastExcept(a.ID(), Message{Type: "answer", From: a.ID(), Data: "sdp"})
	assert.Equal(t, 2, n)
	assert.Empty(t, drain(a))
	for _, s := range []*Subscriber{b, c} {
		msgs := drain(s)
		require.Len(t, msgs, 1)
		assert.Equal(t, "answer", msgs[0].Type)
		assert.Equal(t, a.ID(), msgs[0].From)
	}
}

func TestClose_ClosesAllSubscribers(t *testing.T) {
	h := newTestHub()
	s := NewSubscriber(8)
	h.Subscribe(s)
	drain(s)

	h.Close()
	assert.Equal(t, 0, h.Count())
	_, open := <-s.Messages()
	assert.False(t, open)
}

func TestNewSubscriber_UniqueIDsAndDefaults(t *testing.T) {
	a, b := NewSubscriber(0), NewSubscriber(0)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, a.Wants(TopicEvents))
	assert.True(t, a.Wants(TopicSignaling))
	assert.Equal(t, 1, cap(a.send))
}

func TestSubscribe_StatusFirstUnderConcurrentSignaling(t *testing.T) {
	h := newTestHub()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.BroadcastExcept("peer", Message{Type: "offer"})
				}
			}
		}()
	}

	bad := 0
	for i := 0; i < 20000; i++ {
		s := NewSubscriber(64)
		h.Subscribe(s)
		if first := <-s.Messages(); first.Type != "status" {
			bad++
		}
		h.Unsubscribe(s)
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, bad, "subscribers whose first message was not status")
}

func TestDropped_CountsDeliveryFailures(t *testing.T) {
	h := newTestHub()
	slow := NewSubscriber(1)
	h.Subscribe(slow)
	assert.Zero(t, h.Dropped())

	h.PublishEvent(map[string]any{"label": "x"})
	assert.Equal(t, uint64(1), h.Dropped())

	// a plain unsubscribe is not a failure
	s := NewSubscriber(8)
	h.Subscribe(s)
	h.Unsubscribe(s)
	assert.Equal(t, uint64(1), h.Dropped())
}
