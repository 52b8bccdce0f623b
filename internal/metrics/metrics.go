// Package metrics exposes the Prometheus collectors of the tvstream server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playlistImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvstream_playlist_imports_total",
		Help: "Playlist imports by origin and outcome",
	}, []string{"origin", "outcome"}) // origin=url|file|refresh, outcome=success|failure

	playlistChannelsParsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tvstream_playlist_channels_parsed",
		Help:    "Number of channels parsed per playlist load",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	libraryChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvstream_library_channels",
		Help: "Number of channels currently in the library",
	})

	epgProgrammes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvstream_epg_programmes",
		Help: "Number of EPG programmes indexed in the last refresh",
	})

	streamProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvstream_stream_probes_total",
		Help: "Stream quality probes by outcome",
	}, []string{"outcome"}) // outcome=success|failure|cached

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tvstream_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvstream_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})
)

// Origins of a playlist import.
const (
	OriginURL     = "url"
	OriginFile    = "file"
	OriginRefresh = "refresh"
)

// RecordImport counts a playlist import attempt.
func RecordImport(origin string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	playlistImportsTotal.WithLabelValues(origin, outcome).Inc()
}

// ObserveChannelsParsed records how many channels a playlist produced.
func ObserveChannelsParsed(n int) {
	playlistChannelsParsed.Observe(float64(n))
}

// SetLibraryChannels sets the current library size.
func SetLibraryChannels(n int) {
	libraryChannels.Set(float64(n))
}

// SetEPGProgrammes sets the number of indexed programmes.
func SetEPGProgrammes(n int) {
	epgProgrammes.Set(float64(n))
}

// RecordProbe counts a stream probe. outcome is success, failure or cached.
func RecordProbe(outcome string) {
	streamProbesTotal.WithLabelValues(outcome).Inc()
}

// RequestStarted marks an HTTP request as in flight and returns the function
// that records its completion.
func RequestStarted() func(method, path string, status int, duration time.Duration) {
	httpRequestsInFlight.Inc()
	return func(method, path string, status int, duration time.Duration) {
		httpRequestsInFlight.Dec()
		httpRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
	}
}
