package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/reviewapps-dev/relay/internal/hub"
)

var ErrUnknownKind = errors.New("signaling: unknown message kind")

// Kind is a WebRTC negotiation message type.
type Kind string

const (
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindOffer, KindAnswer, KindICECandidate:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Broadcaster is the part of the hub the relay needs.
type Broadcaster interface {
	BroadcastExcept(senderID string, msg hub.Message) int
}

// Relay forwards negotiation messages to every peer except the sender. It
// keeps no per-peer state and never inspects payloads.
type Relay struct {
	b Broadcaster
}

func NewRelay(b Broadcaster) *Relay {
	return &Relay{b: b}
}

// Forward relays payload under kind. Only the kind is validated.
func (r *Relay) Forward(senderID string, kind Kind, payload json.RawMessage) (int, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return 0, err
	}
	n := r.b.BroadcastExcept(senderID, hub.Message{
		Type: string(kind),
		From: senderID,
		Data: payload,
	})
	log.Printf("signal: %s from %s relayed to %d peer(s)", kind, senderID, n)
	return n, nil
}
