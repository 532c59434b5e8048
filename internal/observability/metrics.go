package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the client-side sync counters. All updates happen on
// the session loop; prometheus types are safe to read concurrently from the
// scrape handler.
type Metrics struct {
	EventsProcessed  *prometheus.CounterVec
	MessagesAppended prometheus.Counter
	MessagesRemoved  prometheus.Counter
	OnlineUsers      prometheus.Gauge
	ActionsTotal     *prometheus.CounterVec
	Reconnects       prometheus.Counter
	Resyncs          prometheus.Counter
}

// NewMetrics registers the metric set against reg. Pass
// prometheus.DefaultRegisterer in production; a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "events_processed_total",
			Help:      "Push events processed, by event type.",
		}, []string{"event"}),
		MessagesAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "messages_appended_total",
			Help:      "Messages appended to the timeline.",
		}),
		MessagesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "messages_removed_total",
			Help:      "Messages removed from the timeline.",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Name:      "online_users",
			Help:      "Users currently reported online.",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "actions_total",
			Help:      "Request/response call outcomes, by action and outcome.",
		}, []string{"action", "outcome"}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "reconnects_total",
			Help:      "Push channel reconnect attempts that succeeded.",
		}),
		Resyncs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "resyncs_total",
			Help:      "Full state resynchronizations applied.",
		}),
	}
}
