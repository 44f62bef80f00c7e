package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewapps-dev/relay/internal/events"
	"github.com/reviewapps-dev/relay/internal/hub"
)

func subscribe(t *testing.T, h *hub.Hub) *hub.Subscriber {
	t.Helper()
	s := hub.NewSubscriber(8)
	h.Subscribe(s)
	msg := <-s.Messages()
	require.Equal(t, "status", msg.Type)
	return s
}

func pending(s *hub.Subscriber) []hub.Message {
	var out []hub.Message
	for {
		select {
		case msg := <-s.Messages():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []string{"offer", "answer", "ice-candidate"} {
		got, err := ParseKind(k)
		require.NoError(t, err)
		assert.Equal(t, Kind(k), got)
	}
	_, err := ParseKind("ice")
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = ParseKind("detection")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestForward_ReachesEveryoneButSender(t *testing.T) {
	h := hub.New(events.NewLog(10), nil, 0)
	r := NewRelay(h)
	sender, p1, p2 := subscribe(t, h), subscribe(t, h), subscribe(t, h)

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	n, err := r.Forward(sender.ID(), KindOffer, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Empty(t, pending(sender))
	for _, p := range []*hub.Subscriber{p1, p2} {
		msgs := pending(p)
		require.Len(t, msgs, 1)
		assert.Equal(t, "offer", msgs[0].Type)
		assert.Equal(t, sender.ID(), msgs[0].From)
		assert.Equal(t, payload, msgs[0].Data)
	}
}

func TestForward_SingleSubscriberGetsNothing(t *testing.T) {
	h := hub.New(events.NewLog(10), nil, 0)
	r := NewRelay(h)
	only := subscribe(t, h)

	n, err := r.Forward(only.ID(), KindICECandidate, json.RawMessage(`{"candidate":"x"}`))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pending(only))
}

func TestForward_UnknownKindRejected(t *testing.T) {
	h := hub.New(events.NewLog(10), nil, 0)
	r := NewRelay(h)
	a, b := subscribe(t, h), subscribe(t, h)

	_, err := r.Forward(a.ID(), Kind("hangup"), nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Empty(t, pending(b))
}

type recorder struct {
	sender string
	msgs   []hub.Message
}

func (r *recorder) BroadcastExcept(senderID string, msg hub.Message) int {
	r.sender = senderID
	r.msgs = append(r.msgs, msg)
	return 0
}

func TestForward_PassesPayloadThroughUntouched(t *testing.T) {
	rec := &recorder{}
	r := NewRelay(rec)

	raw := json.RawMessage(`not even json`)
	_, err := r.Forward("peer-1", KindAnswer, raw)
	require.NoError(t, err)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "peer-1", rec.sender)
	assert.Equal(t, raw, rec.msgs[0].Data)
}
