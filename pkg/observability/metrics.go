package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records tour activity as Prometheus collectors.
type Metrics struct {
	registry prometheus.Gatherer

	StepsShown   *prometheus.CounterVec
	StepsSkipped *prometheus.CounterVec
	StepWait     *prometheus.HistogramVec
	Navigations  *prometheus.CounterVec
	ToursEnded   *prometheus.CounterVec
	Active       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	reg.MustRegister(m.StepsShown, m.StepsSkipped, m.StepWait, m.Navigations, m.ToursEnded, m.Active)
	m.registry = reg
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		StepsShown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_steps_shown_total",
			Help: "Steps shown to learners.",
		}, []string{"tour", "step"}),
		StepsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_steps_skipped_total",
			Help: "Steps skipped because their target never appeared.",
		}, []string{"tour", "step"}),
		StepWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waypoint_step_wait_seconds",
			Help:    "Time from a step request until its target was ready.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		}, []string{"tour"}),
		Navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_navigations_total",
			Help: "Route changes requested by the engine.",
		}, []string{"tour", "result"}),
		ToursEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_tours_ended_total",
			Help: "Tours that completed or were skipped.",
		}, []string{"tour", "phase"}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waypoint_sessions_active",
			Help: "Open tour sessions.",
		}),
	}
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepsShown.WithLabelValues(e.TourID, stepLabel(e.Index)).Inc()
			m.StepWait.WithLabelValues(e.TourID).Observe(e.Duration.Seconds())
		},
		OnStepSkipped: func(_ context.Context, e *domain.StepEvent) {
			m.StepsSkipped.WithLabelValues(e.TourID, stepLabel(e.Index)).Inc()
		},
		OnNavigate: func(_ context.Context, e *domain.NavigationEvent) {
			result := "ok"
			if e.IsError {
				result = "error"
			}
			m.Navigations.WithLabelValues(e.TourID, result).Inc()
		},
		OnComplete: func(_ context.Context, e *domain.TourEvent) {
			m.ToursEnded.WithLabelValues(e.TourID, string(e.Phase)).Inc()
		},
		OnSkip: func(_ context.Context, e *domain.TourEvent) {
			m.ToursEnded.WithLabelValues(e.TourID, string(e.Phase)).Inc()
		},
	}
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
