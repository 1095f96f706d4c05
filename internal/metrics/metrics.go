// Package metrics instruments the event index and categorizer with prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	communications  *prometheus.CounterVec
	eventsCreated   *prometheus.CounterVec
	categorizations *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	persistDur      prometheus.Histogram
}

// New builds the collectors and registers them with reg.
// A nil reg leaves the collectors unregistered (useful in tests).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		communications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venueindex",
			Name:      "communications_recorded_total",
			Help:      "Communications appended to an event, by source",
		}, []string{"source"}),
		eventsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venueindex",
			Name:      "events_created_total",
			Help:      "Events added to the catalog, by origin",
		}, []string{"origin"}),
		categorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venueindex",
			Name:      "categorizations_total",
			Help:      "Categorization decisions, by source type and outcome (matched|created)",
		}, []string{"source_type", "outcome"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venueindex",
			Name:      "persist_failures_total",
			Help:      "Failed snapshot loads and saves, by operation",
		}, []string{"op"}),
		persistDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "venueindex",
			Name:      "persist_duration_seconds",
			Help:      "Time spent writing a snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.communications, m.eventsCreated, m.categorizations, m.persistFailures, m.persistDur)
	}
	return m
}

func (m *Metrics) CommunicationRecorded(source string) {
	if m == nil {
		return
	}
	m.communications.WithLabelValues(source).Inc()
}

func (m *Metrics) EventCreated(origin string) {
	if m == nil {
		return
	}
	m.eventsCreated.WithLabelValues(origin).Inc()
}

// Categorized counts one decision. created distinguishes new events from matches.
func (m *Metrics) Categorized(sourceType string, created bool) {
	if m == nil {
		return
	}
	outcome := "matched"
	if created {
		outcome = "created"
	}
	m.categorizations.WithLabelValues(sourceType, outcome).Inc()
}

func (m *Metrics) PersistFailed(op string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(op).Inc()
}

// ObservePersist records the duration of a save started at start.
func (m *Metrics) ObservePersist(start time.Time) {
	if m == nil {
		return
	}
	m.persistDur.Observe(time.Since(start).Seconds())
}
