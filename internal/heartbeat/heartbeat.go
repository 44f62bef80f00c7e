package heartbeat

import (
	"log"
	"sync"
	"time"
)

// Stats is a point-in-time view of relay activity.
type Stats struct {
	FrameSeq    uint64
	Viewers     int
	Subscribers int
	Events      int
}

// Heartbeat logs relay activity on a fixed interval.
type Heartbeat struct {
	collect func() Stats
	logf    func(format string, args ...any)
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func New(collect func() Stats) *Heartbeat {
	return &Heartbeat{
		collect: collect,
		logf:    log.Printf,
		stop:    make(chan struct{}),
	}
}

func (h *Heartbeat) Start(interval time.Duration) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-ticker.C:
				lastSeq = h.send(lastSeq, interval)
			case <-h.stop:
				return
			}
		}
	}()
}

func (h *Heartbeat) Stop() {
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}

// send logs one line and returns the frame sequence it saw.
func (h *Heartbeat) send(lastSeq uint64, interval time.Duration) uint64 {
	st := h.collect()
	fps := float64(st.FrameSeq-lastSeq) / interval.Seconds()
	h.logf("heartbeat: frames=%d (%.1f/s) viewers=%d subscribers=%d events=%d",
		st.FrameSeq, fps, st.Viewers, st.Subscribers, st.Events)
	return st.FrameSeq
}
