package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics. They live on a private
// registry so a run-to-completion process can push them to a
// Pushgateway instead of waiting to be scraped.
type Metrics struct {
	Registry *prometheus.Registry

	Runs                prometheus.Counter
	MessagesFetched     prometheus.Counter
	DedupSkips          prometheus.Counter
	ClassifierFallbacks prometheus.Counter
	TicketsFiled        *prometheus.CounterVec
	TicketFailures      prometheus.Counter
	NotifyFailures      prometheus.Counter
	RunDuration         prometheus.Histogram
}

// New creates new Prometheus metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		Runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox2itsm_runs_total",
			Help: "Total number of pipeline runs",
		}),
		MessagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox2itsm_messages_fetched_total",
			Help: "Total number of unread messages fetched",
		}),
		DedupSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox2itsm_dedup_skips_total",
			Help: "Total number of messages skipped as already processed",
		}),
		ClassifierFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox2itsm_classifier_fallbacks_total",
			Help: "Total number of classifications that fell back to the incident default",
		}),
		TicketsFiled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox2itsm_tickets_filed_total",
			Help: "Total number of tickets filed, by intent",
		}, []string{"intent"}),
		TicketFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox2itsm_ticket_failures_total",
			Help: "Total number of failed ticket creations",
		}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox2itsm_notify_failures_total",
			Help: "Total number of failed approval notifications",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inbox2itsm_run_duration_seconds",
			Help:    "Time spent per pipeline run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Push pushes the registry to a Pushgateway. A no-op when no URL is
// configured.
func (m *Metrics) Push(url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
