// Package metrics exposes prometheus counters for contract reads, wallet
// writes and session lifecycle. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the client's collectors on its own registry.
type Recorder struct {
	registry     *prometheus.Registry
	reads        *prometheus.CounterVec
	readDuration *prometheus.HistogramVec
	writes       *prometheus.CounterVec
	sessions     *prometheus.CounterVec
	notices      *prometheus.CounterVec
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monadvote",
			Name:      "contract_reads_total",
			Help:      "Vote state refreshes by network and result.",
		}, []string{"network", "result"}),
		readDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "monadvote",
			Name:      "contract_read_duration_seconds",
			Help:      "Duration of one vote state refresh.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monadvote",
			Name:      "wallet_writes_total",
			Help:      "Votes and donations by network and result.",
		}, []string{"action", "network", "result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monadvote",
			Name:      "wallet_session_events_total",
			Help:      "Wallet session events by connection path.",
		}, []string{"path", "event"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monadvote",
			Name:      "notices_total",
			Help:      "Notices shown to the user by kind.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.reads, r.readDuration, r.writes, r.sessions, r.notices)
	return r
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StartRead starts timing a refresh; call the returned func with its result.
func (r *Recorder) StartRead(network string) func(err error) {
	if r == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		r.readDuration.WithLabelValues(network).Observe(time.Since(start).Seconds())
		r.reads.WithLabelValues(network, result(err)).Inc()
	}
}

// Write counts a vote or donation.
func (r *Recorder) Write(action, network string, err error) {
	if r == nil {
		return
	}
	r.writes.WithLabelValues(action, network, result(err)).Inc()
}

// Session counts a session lifecycle event.
func (r *Recorder) Session(path, event string) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(path, event).Inc()
}

// Notice counts a notice.
func (r *Recorder) Notice(kind string) {
	if r == nil {
		return
	}
	r.notices.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
