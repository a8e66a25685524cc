package main

import (
	"net/http"

	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	rxBuffers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackrfcap_buffers_received_total",
		Help: "Total number of sample buffers delivered by the device",
	})
	rxBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackrfcap_bytes_written_total",
		Help: "Total number of raw sample bytes committed to the output file",
	})
	rxSquelched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackrfcap_buffers_squelched_total",
		Help: "Total number of sample buffers dropped below the squelch level",
	})
	rxWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackrfcap_write_errors_total",
		Help: "Total number of failed output file writes",
	})
)

// serveDebug exposes prometheus metrics and pprof on addr. Best-effort: a
// listen failure is logged, capture continues without the endpoint.
func serveDebug(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.WithError(err).Warn("debug listener failed")
		}
	}()
}
