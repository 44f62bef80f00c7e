package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/reviewapps-dev/relay/internal/frame"
	"github.com/reviewapps-dev/relay/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var seq uint64
	if f := s.frames.Current(); f != nil {
		seq = f.Seq
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     version.Version,
		"uptime":      time.Since(s.startTime).Seconds(),
		"has_frame":   s.frames.HasFrame(),
		"frame_seq":   seq,
		"viewers":     s.video.Active(),
		"subscribers": s.hub.Count(),
		"events":      s.events.Len(),
	})
}

// handleFrame accepts either a multipart upload (field from config) or a raw
// image body.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)

	data, err := s.readFrame(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"ok": false, "msg": "frame too large"})
			return
		}
		log.Printf("frame: read upload: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "msg": "no frame"})
		return
	}

	f, err := s.frames.Publish(data)
	if errors.Is(err, frame.ErrEmptyFrame) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "msg": "no frame"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	log.Printf("frame: received size=%d bytes", f.Len())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "timestamp": f.ReceivedAt.UnixMilli()})
}

func (s *Server) readFrame(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(r.Body)
	}

	file, _, err := r.FormFile(s.cfg.Upload.Field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Events.SnapshotLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, s.events.Cap())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.events.Snapshot(limit),
	})
}

// handleStatic serves the dashboard and its assets from the public directory.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	dir := s.cfg.Server.PublicDir
	if dir == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.URL.Path == "/" {
		index := filepath.Join(dir, s.cfg.Server.Index)
		if _, err := os.Stat(index); err != nil {
			writeError(w, http.StatusNotFound, "dashboard not found")
			return
		}
		http.ServeFile(w, r, index)
		return
	}
	http.FileServer(http.Dir(dir)).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
