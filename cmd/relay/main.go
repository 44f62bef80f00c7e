package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reviewapps-dev/relay/internal/config"
	"github.com/reviewapps-dev/relay/internal/events"
	"github.com/reviewapps-dev/relay/internal/frame"
	"github.com/reviewapps-dev/relay/internal/heartbeat"
	"github.com/reviewapps-dev/relay/internal/hub"
	"github.com/reviewapps-dev/relay/internal/mjpeg"
	"github.com/reviewapps-dev/relay/internal/server"
	"github.com/reviewapps-dev/relay/internal/signaling"
	"github.com/reviewapps-dev/relay/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.String())
		return
	}

	var (
		configPath = flag.String("config", "", "path to relay.toml or relay.yaml")
		listen     = flag.String("listen", "", "override listen address")
		publicDir  = flag.String("public", "", "override static files directory")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *publicDir != "" {
		cfg.Server.PublicDir = *publicDir
	}

	frames := frame.NewStore()
	eventLog := events.NewLog(cfg.Events.MaxEvents)
	h := hub.New(eventLog, frames, cfg.Events.SnapshotLimit)
	relay := signaling.NewRelay(h)
	video := mjpeg.New(frames, mjpeg.Config{
		Interval:    cfg.StreamInterval(),
		Boundary:    cfg.Stream.Boundary,
		ContentType: cfg.Stream.ContentType,
	})

	srv := server.New(cfg, frames, eventLog, h, relay, video)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	var hb *heartbeat.Heartbeat
	if cfg.Server.HeartbeatS > 0 {
		hb = heartbeat.New(func() heartbeat.Stats {
			st := heartbeat.Stats{
				Viewers:     video.Active(),
				Subscribers: h.Count(),
				Events:      eventLog.Len(),
			}
			if f := frames.Current(); f != nil {
				st.FrameSeq = f.Seq
			}
			return st
		})
		hb.Start(time.Duration(cfg.Server.HeartbeatS) * time.Second)
	}

	log.Printf("relay %s started (pid=%d, interval=%s, max_events=%d)",
		version.Version, os.Getpid(), cfg.StreamInterval(), cfg.Events.MaxEvents)

	<-ctx.Done()
	log.Println("shutting down...")

	// Dropping subscribers first lets their socket handlers return.
	h.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if hb != nil {
		hb.Stop()
	}
	log.Println("relay stopped")
}
