// Package metrics holds the prometheus collectors for content selection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	LookupHit          = "hit"
	LookupMiss         = "miss"
	LookupPending      = "pending"
	LookupStalePending = "stale_pending"
	LookupErrorMarker  = "error_marker"
)

// Fixed label values for caller-supplied targets that are not configured.
const (
	OtherTarget    = "other"
	UnmatchedRoute = "unmatched"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nest",
		Name:      "content_cache_lookups_total",
		Help:      "AI prop cache lookups by result",
	}, []string{"result"})

	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nest",
		Name:      "ai_generations_total",
		Help:      "External AI generator calls by outcome",
	}, []string{"outcome"})

	GenerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nest",
		Name:      "ai_generation_duration_seconds",
		Help:      "Duration of external AI generator calls",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	SlotPicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nest",
		Name:      "slot_picks_total",
		Help:      "Slot selections by screen, slot and whether a rule matched",
	}, []string{"screen", "slot", "matched"})

	Sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nest",
		Name:      "cache_sweeps_total",
		Help:      "Expired-entry sweeps by cache and outcome",
	}, []string{"cache", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nest",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
