package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reviewapps-dev/relay/internal/config"
	"github.com/reviewapps-dev/relay/internal/events"
	"github.com/reviewapps-dev/relay/internal/frame"
	"github.com/reviewapps-dev/relay/internal/hub"
	"github.com/reviewapps-dev/relay/internal/metrics"
	"github.com/reviewapps-dev/relay/internal/mjpeg"
	"github.com/reviewapps-dev/relay/internal/signaling"
)

type Server struct {
	cfg       *config.Config
	frames    *frame.Store
	events    *events.Log
	hub       *hub.Hub
	relay     *signaling.Relay
	video     *mjpeg.Multiplexer
	registry  *prometheus.Registry
	httpSrv   *http.Server
	startTime time.Time

	// baseCtx is the parent of every request context. Shutdown cancels it so
	// long-lived /video and /ws handlers return instead of holding the
	// server open until the shutdown deadline.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

func New(cfg *config.Config, frames *frame.Store, eventLog *events.Log, h *hub.Hub, relay *signaling.Relay, video *mjpeg.Multiplexer) *Server {
	s := &Server{
		cfg:       cfg,
		frames:    frames,
		events:    eventLog,
		hub:       h,
		relay:     relay,
		video:     video,
		startTime: time.Now(),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.registry = metrics.NewRegistry(metrics.Sources{
		Viewers:            video.Active,
		Subscribers:        h.Count,
		RetainedEvents:     eventLog.Len,
		FramesPublished:    frames.Published,
		FramesDelivered:    video.Delivered,
		SubscribersDropped: h.Dropped,
	})
	s.httpSrv = &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // cleared per request for /video
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler(s.registry))
	mux.HandleFunc("POST /frame", s.handleFrame)
	mux.HandleFunc("GET /video", s.handleVideo)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleSocket)
	mux.HandleFunc("GET /", s.handleStatic)

	var handler http.Handler = mux
	handler = corsMiddleware(handler)
	handler = recoveryMiddleware(handler)
	handler = loggingMiddleware(handler, "/video", "/ws")

	return handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	log.Printf("relay listening on %s", ln.Addr())
	return s.httpSrv.Serve(ln)
}

// Shutdown ends streaming sessions, then waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	return s.httpSrv.Shutdown(ctx)
}
