package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	DispatchTotal     *prometheus.CounterVec
	DispatchDuration  *prometheus.HistogramVec
	ProbeTotal        *prometheus.CounterVec
	ConfigExtractions *prometheus.CounterVec
	StateMutations    *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = New()
		prometheus.MustRegister(
			global.DispatchTotal,
			global.DispatchDuration,
			global.ProbeTotal,
			global.ConfigExtractions,
			global.StateMutations,
		)
	})
	return global
}

// New builds an unregistered set, for tests and custom registries.
func New() *Metrics {
	return &Metrics{
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistdeck",
			Name:      "dispatch_total",
			Help:      "Chat dispatches by provider kind and outcome",
		}, []string{"kind", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistdeck",
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time of chat dispatch round trips",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		ProbeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistdeck",
			Name:      "probe_total",
			Help:      "Connection probes by provider kind and outcome",
		}, []string{"kind", "outcome"}),
		ConfigExtractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistdeck",
			Name:      "config_extractions_total",
			Help:      "Assistant configs extracted from generator replies by strategy",
		}, []string{"strategy"}),
		StateMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistdeck",
			Name:      "state_mutations_total",
			Help:      "Persisted registry and assistant list mutations by action",
		}, []string{"action"}),
	}
}
