package mjpeg

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reviewapps-dev/relay/internal/frame"
)

const DefaultInterval = 100 * time.Millisecond

// Source is where sessions read the latest frame from on every tick.
type Source interface {
	Current() *frame.Frame
}

type flusher interface {
	Flush()
}

type Config struct {
	Interval    time.Duration
	Boundary    string
	ContentType string
}

// Multiplexer runs one independent streaming session per viewer.
type Multiplexer struct {
	src       Source
	cfg       Config
	active    atomic.Int64
	delivered atomic.Uint64
}

func New(src Source, cfg Config) *Multiplexer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Boundary == "" {
		cfg.Boundary = DefaultBoundary
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	return &Multiplexer{src: src, cfg: cfg}
}

func (m *Multiplexer) Boundary() string {
	return m.cfg.Boundary
}

// Delivered returns the number of records written across all sessions.
func (m *Multiplexer) Delivered() uint64 {
	return m.delivered.Load()
}

// Active returns the number of running sessions.
func (m *Multiplexer) Active() int {
	return int(m.active.Load())
}

// Attach starts streaming to w. One record goes out immediately if a frame
// exists, then one per interval (the configured default when interval <= 0).
// The session ends when ctx is cancelled, Close is called, or a write fails.
// If w implements Flush() it is flushed after every record.
func (m *Multiplexer) Attach(ctx context.Context, w io.Writer, interval time.Duration) *Session {
	if interval <= 0 {
		interval = m.cfg.Interval
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		m:        m,
		w:        w,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.flush, _ = w.(flusher)

	m.active.Add(1)
	go s.run(ctx)
	return s
}

// Session is one viewer's stream.
type Session struct {
	m        *Multiplexer
	w        io.Writer
	flush    flusher
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	sent atomic.Uint64

	errMu sync.Mutex
	err   error
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.m.active.Add(-1)
	defer s.cancel()

	if ctx.Err() != nil || !s.deliver() {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.deliver() {
				return
			}
		}
	}
}

// deliver writes the current frame, if any. It reports false once the sink
// has failed.
func (s *Session) deliver() bool {
	f := s.m.src.Current()
	if f == nil {
		return true
	}
	if err := WriteRecord(s.w, s.m.cfg.Boundary, s.m.cfg.ContentType, f.Data); err != nil {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		log.Printf("video: session ended after %d frame(s): %v", s.sent.Load(), err)
		return false
	}
	if s.flush != nil {
		s.flush.Flush()
	}
	s.sent.Add(1)
	s.m.delivered.Add(1)
	return true
}

// Close stops the session and waits for its goroutine to exit.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the write error that ended the session, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Sent returns the number of records delivered so far.
func (s *Session) Sent() uint64 {
	return s.sent.Load()
}
