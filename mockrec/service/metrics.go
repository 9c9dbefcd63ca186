package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-appsec/mockrec/mockrec/service/recorder"
	"github.com/go-appsec/mockrec/mockrec/service/sanitize"
	"github.com/go-appsec/mockrec/mockrec/service/store"
)

// newMetricsRegistry returns a registry whose collectors read live values from the
// recorder and artifact store on every scrape.
func newMetricsRegistry(rec *recorder.Recorder, artifacts *store.ArtifactStore, dynamic *sanitize.DynamicValues, startedAt time.Time) *prometheus.Registry {
	counter := func(name, help string, read func(recorder.Counters) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
			return float64(read(rec.State().Counters))
		})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		counter("mockrec_intercepted_total", "Calls handled by an active record or replay session.",
			func(c recorder.Counters) int64 { return c.Intercepted }),
		counter("mockrec_recorded_total", "Artifacts saved from live responses.",
			func(c recorder.Counters) int64 { return c.Recorded }),
		counter("mockrec_replayed_total", "Calls answered from stored artifacts.",
			func(c recorder.Counters) int64 { return c.Replayed }),
		counter("mockrec_missed_total", "Replay lookups with no stored artifact.",
			func(c recorder.Counters) int64 { return c.Missed }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mockrec_cache_entries",
			Help: "Artifacts currently held in the in-memory cache.",
		}, func() float64 { return float64(artifacts.CacheLen()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mockrec_dynamic_values",
			Help: "Tracked dynamic values.",
		}, func() float64 { return float64(dynamic.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mockrec_session_active",
			Help: "1 while a record or replay session is active.",
		}, func() float64 {
			if rec.State().Active {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mockrec_uptime_seconds",
			Help: "Seconds since the service started.",
		}, func() float64 { return time.Since(startedAt).Seconds() }),
		prometheus.NewGoCollector(),
	)
	return reg
}

// metricsHandler returns an HTTP handler for the /metrics endpoint.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
