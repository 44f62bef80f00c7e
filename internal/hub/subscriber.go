package hub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrClosed         = errors.New("hub: subscriber closed")
	ErrSlowSubscriber = errors.New("hub: subscriber send buffer full")
)

// Topic selects which broadcasts a subscriber receives.
type Topic string

const (
	TopicEvents    Topic = "events"
	TopicSignaling Topic = "signaling"
)

var AllTopics = []Topic{TopicEvents, TopicSignaling}

// Message is the envelope written to subscribers.
type Message struct {
	Type string `json:"type"`
	From string `json:"from,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Subscriber is one connected client. The hub queues messages on a buffered
// channel; the transport drains Messages() and writes them out. When the
// subscriber is removed the channel is closed.
type Subscriber struct {
	id     string
	topics map[Topic]bool
	send   chan Message

	mu     sync.Mutex
	closed bool
}

// NewSubscriber creates a subscriber with a random session id. With no
// topics it receives all of them.
func NewSubscriber(bufSize int, topics ...Topic) *Subscriber {
	if bufSize < 1 {
		bufSize = 1
	}
	if len(topics) == 0 {
		topics = AllTopics
	}
	s := &Subscriber{
		id:     uuid.NewString(),
		topics: make(map[Topic]bool, len(topics)),
		send:   make(chan Message, bufSize),
	}
	for _, t := range topics {
		s.topics[t] = true
	}
	return s
}

func (s *Subscriber) ID() string {
	return s.id
}

func (s *Subscriber) Messages() <-chan Message {
	return s.send
}

func (s *Subscriber) Wants(t Topic) bool {
	return s.topics[t]
}

// deliver queues msg without blocking.
func (s *Subscriber) deliver(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// close reports whether this call closed the subscriber.
func (s *Subscriber) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.send)
	return true
}
