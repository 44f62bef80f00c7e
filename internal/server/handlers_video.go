package server

import (
	"log"
	"net/http"
	"time"

	"github.com/reviewapps-dev/relay/internal/mjpeg"
)

// flushWriter flushes the HTTP response after each multipart record.
type flushWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (f *flushWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *flushWriter) Flush() {
	_ = f.rc.Flush()
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream lives as long as the viewer does.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Printf("video: clear write deadline: %v", err)
	}

	h := w.Header()
	h.Set("Content-Type", mjpeg.ContentType(s.video.Boundary()))
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "close")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	session := s.video.Attach(r.Context(), &flushWriter{w: w, rc: rc}, 0)
	log.Printf("video: client connected from %s (%d active)", r.RemoteAddr, s.video.Active())
	<-session.Done()
	log.Printf("video: client disconnected from %s after %d frame(s)", r.RemoteAddr, session.Sent())
}
