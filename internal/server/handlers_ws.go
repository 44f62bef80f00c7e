package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/reviewapps-dev/relay/internal/hub"
	"github.com/reviewapps-dev/relay/internal/signaling"
)

// inbound is a message received from a client.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("channels"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // any origin, same as the CORS policy
	})
	if err != nil {
		log.Printf("ws: accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Status is queued on subscribe, so it is the first thing the writer sends.
	sub := hub.NewSubscriber(s.cfg.Hub.SendBuffer, topics...)
	s.hub.Subscribe(sub)
	log.Printf("ws: %s connected (%d subscribers)", sub.ID(), s.hub.Count())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writeMessages(ctx, conn, sub)
	}()

	s.readMessages(ctx, conn, sub)

	s.hub.Unsubscribe(sub)
	cancel()
	<-writerDone
	log.Printf("ws: %s disconnected", sub.ID())
}

// writeMessages drains the subscriber's queue onto the socket. The queue is
// closed when the hub drops the subscriber.
func (s *Server) writeMessages(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "subscriber dropped")
				return
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) readMessages(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	for {
		var msg inbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Printf("ws: %s read: %v", sub.ID(), err)
			}
			return
		}
		s.dispatch(sub, msg)
	}
}

func (s *Server) dispatch(sub *hub.Subscriber, msg inbound) {
	if msg.Type == "detection" {
		var fields map[string]any
		if err := json.Unmarshal(msg.Data, &fields); err != nil || fields == nil {
			log.Printf("detection: ignoring non-object payload from %s", sub.ID())
			return
		}
		ev := s.hub.PublishEvent(fields)
		log.Printf("detection: %s", ev.Summary())
		return
	}

	kind, err := signaling.ParseKind(msg.Type)
	if err != nil {
		log.Printf("ws: %s sent unsupported message %q", sub.ID(), msg.Type)
		return
	}
	if _, err := s.relay.Forward(sub.ID(), kind, msg.Data); err != nil {
		log.Printf("signal: %v", err)
	}
}

// parseTopics reads a comma-separated channel list; empty means all.
func parseTopics(raw string) ([]hub.Topic, error) {
	if raw == "" {
		return nil, nil
	}
	var topics []hub.Topic
	for _, part := range strings.Split(raw, ",") {
		switch t := hub.Topic(strings.TrimSpace(part)); t {
		case hub.TopicEvents, hub.TopicSignaling:
			topics = append(topics, t)
		default:
			return nil, fmt.Errorf("unknown channel %q", part)
		}
	}
	return topics, nil
}
