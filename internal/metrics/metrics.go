package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors the pipeline and listener update.
// Constructed once at startup and threaded through; nothing registers
// itself from init.
type Metrics struct {
	OutcomesTotal       *prometheus.CounterVec
	DirectoryEmptyTotal prometheus.Counter
	AppendFailuresTotal prometheus.Counter
	PublishErrorsTotal  prometheus.Counter
	BrokerConnected     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presenced",
			Name:      "outcomes_total",
			Help:      "Processed events by outcome status.",
		}, []string{"status"}),
		DirectoryEmptyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presenced",
			Name:      "directory_empty_total",
			Help:      "Captures resolved against an empty identity directory.",
		}),
		AppendFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presenced",
			Name:      "append_failures_total",
			Help:      "Durable sink append failures.",
		}),
		PublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presenced",
			Name:      "publish_errors_total",
			Help:      "Failed outcome publishes on the result topic.",
		}),
		BrokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "presenced",
			Name:      "broker_connected",
			Help:      "1 while the MQTT session is up.",
		}),
	}

	reg.MustRegister(
		m.OutcomesTotal,
		m.DirectoryEmptyTotal,
		m.AppendFailuresTotal,
		m.PublishErrorsTotal,
		m.BrokerConnected,
	)
	return m
}

// NewForTest returns metrics bound to a throwaway registry.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}
