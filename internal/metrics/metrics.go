package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "mindease"

// Collector owns a private registry so tests can build as many as they
// need without clashing on the default one.
type Collector struct {
	logger   zerolog.Logger
	registry *prometheus.Registry

	phasesEnded    *prometheus.CounterVec
	alertsRaised   *prometheus.CounterVec
	liveEngines    prometheus.Gauge
	stateConflicts prometheus.Counter
	httpDuration   *prometheus.HistogramVec
}

func NewCollector(logger zerolog.Logger) *Collector {
	c := &Collector{
		logger:   logger.With().Str("component", "metrics").Logger(),
		registry: prometheus.NewRegistry(),
	}

	c.phasesEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phases_ended_total",
			Help:      "Focus and break phases that ended, by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)
	c.alertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Cognitive alerts shown to users, by reason",
		},
		[]string{"reason"},
	)
	c.liveEngines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_engines",
		Help:      "Per-user timer engines currently held in memory",
	})
	c.stateConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_conflicts_total",
		Help:      "Timer commands rejected for a stale base version",
	})
	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	c.registry.MustRegister(
		c.phasesEnded,
		c.alertsRaised,
		c.liveEngines,
		c.stateConflicts,
		c.httpDuration,
		collectors.NewGoCollector(),
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: promLogger{c.logger},
	})
}

// PhaseEnded records a finished phase. Natural endings count as completed,
// everything else as stopped.
func (c *Collector) PhaseEnded(phase string, natural bool) {
	outcome := "stopped"
	if natural {
		outcome = "completed"
	}
	c.phasesEnded.WithLabelValues(phase, outcome).Inc()
}

func (c *Collector) AlertRaised(reason string) {
	c.alertsRaised.WithLabelValues(reason).Inc()
}

func (c *Collector) EngineLoaded() {
	c.liveEngines.Inc()
}

func (c *Collector) EngineEvicted() {
	c.liveEngines.Dec()
}

func (c *Collector) StateConflict() {
	c.stateConflicts.Inc()
}

func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

type promLogger struct {
	logger zerolog.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error().Msgf("%v", v)
}
