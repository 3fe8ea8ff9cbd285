package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomkeys"

// Decryption results.
const (
	ResultOK             = "ok"
	ResultUnknownIndex   = "unknown_index"
	ResultInvalidMAC     = "invalid_mac"
	ResultBadSignature   = "invalid_signature"
	ResultMismatchedRoom = "mismatched_room"
	ResultNotAnObject    = "not_an_object"
	ResultUnknownSession = "unknown_session"
	ResultUnsupported    = "unsupported"
	ResultOther          = "error"
)

// Metrics holds the collectors for one process. A nil *Metrics discards
// every observation.
type Metrics struct {
	registry *prometheus.Registry

	decryptions      *prometheus.CounterVec
	decryptDuration  prometheus.Histogram
	sessionsReceived *prometheus.CounterVec
	backedUp         prometheus.Counter
	restored         prometheus.Counter
	storedSessions   prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decryptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decryptions_total",
			Help:      "Room event decryptions by result.",
		}, []string{"result"}),
		decryptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decrypt_duration_seconds",
			Help:      "Time spent decrypting a room event.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		sessionsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_received_total",
			Help:      "Inbound group sessions received by source and whether they were stored.",
		}, []string{"source", "stored"}),
		backedUp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_backed_up_total",
			Help:      "Sessions encrypted into a key backup.",
		}),
		restored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_restored_total",
			Help:      "Sessions restored from a key backup.",
		}),
		storedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_sessions",
			Help:      "Inbound group sessions currently held in the store.",
		}),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.decryptions,
		m.decryptDuration,
		m.sessionsReceived,
		m.backedUp,
		m.restored,
		m.storedSessions,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDecrypt records one decryption attempt.
func (m *Metrics) ObserveDecrypt(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.decryptions.WithLabelValues(result).Inc()
	m.decryptDuration.Observe(took.Seconds())
}

// SessionReceived records a session arriving from source.
func (m *Metrics) SessionReceived(source string, stored bool) {
	if m == nil {
		return
	}
	label := "false"
	if stored {
		label = "true"
	}
	m.sessionsReceived.WithLabelValues(source, label).Inc()
}

// SessionsBackedUp adds n to the backed up counter.
func (m *Metrics) SessionsBackedUp(n int) {
	if m == nil {
		return
	}
	m.backedUp.Add(float64(n))
}

// SessionsRestored adds n to the restored counter.
func (m *Metrics) SessionsRestored(n int) {
	if m == nil {
		return
	}
	m.restored.Add(float64(n))
}

// SetStoredSessions sets the stored sessions gauge.
func (m *Metrics) SetStoredSessions(n int) {
	if m == nil {
		return
	}
	m.storedSessions.Set(float64(n))
}
