// Package metrics exposes relay activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Sources reads the live counters kept by the relay components. Nil funcs
// are skipped.
type Sources struct {
	Viewers            func() int
	Subscribers        func() int
	RetainedEvents     func() int
	FramesPublished    func() uint64
	FramesDelivered    func() uint64
	SubscribersDropped func() uint64
}

// NewRegistry builds a registry whose metrics are read from src at scrape
// time, plus the Go runtime and process collectors.
func NewRegistry(src Sources) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	gauge := func(name, help string, fn func() int) {
		if fn == nil {
			return
		}
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(fn()) },
		))
	}
	counter := func(name, help string, fn func() uint64) {
		if fn == nil {
			return
		}
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(fn()) },
		))
	}

	gauge("viewers", "Number of attached video stream viewers", src.Viewers)
	gauge("subscribers", "Number of connected real-time subscribers", src.Subscribers)
	gauge("events_retained", "Number of detection events held in the log", src.RetainedEvents)
	counter("frames_published_total", "Total frames accepted from the producer", src.FramesPublished)
	counter("frames_delivered_total", "Total multipart records written to viewers", src.FramesDelivered)
	counter("subscribers_dropped_total", "Total subscribers removed after a failed delivery", src.SubscribersDropped)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
