package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GeocodeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filltrip",
			Subsystem: "geocoding",
			Name:      "requests_total",
			Help:      "Geocoding lookups by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	GeocodeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filltrip",
			Subsystem: "geocoding",
			Name:      "cache_total",
			Help:      "Geocoding cache lookups by result (hit|miss).",
		},
		[]string{"result"},
	)

	RouteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filltrip",
			Subsystem: "routing",
			Name:      "requests_total",
			Help:      "Route fetches by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	RouteCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filltrip",
			Subsystem: "routing",
			Name:      "cache_total",
			Help:      "Route cache lookups by result (hit|miss).",
		},
		[]string{"result"},
	)

	RouteFetchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filltrip",
			Subsystem: "routing",
			Name:      "fetch_seconds",
			Help:      "Latency of upstream directions requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PlannerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filltrip",
			Subsystem: "planner",
			Name:      "events_total",
			Help:      "Planner events applied, by event type.",
		},
		[]string{"event"},
	)

	StaleResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filltrip",
			Subsystem: "planner",
			Name:      "stale_results_total",
			Help:      "Asynchronous results discarded because a newer request superseded them.",
		},
		[]string{"kind"},
	)

	ActivePlanners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "filltrip",
			Subsystem: "planner",
			Name:      "active_sessions",
			Help:      "Planner controllers currently running.",
		},
	)
)

var regOnce sync.Once

// MustRegister registers all collectors with the default registry exactly once.
func MustRegister() {
	regOnce.Do(func() {
		prometheus.MustRegister(
			GeocodeRequestsTotal,
			GeocodeCacheTotal,
			RouteRequestsTotal,
			RouteCacheTotal,
			RouteFetchSeconds,
			PlannerEventsTotal,
			StaleResultsTotal,
			ActivePlanners,
		)
	})
}

// Outcome maps an error to the outcome label value
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
