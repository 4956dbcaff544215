package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementComputeTotal counts settlement computations by outcome.
	SettlementComputeTotal *prometheus.CounterVec
	// SettlementComputeLatency records settlement computation latency in milliseconds.
	SettlementComputeLatency prometheus.Histogram
	// ClaimWritesTotal counts claim upserts and deletes by outcome.
	ClaimWritesTotal *prometheus.CounterVec
	// RoomJoinsTotal counts room join attempts by outcome.
	RoomJoinsTotal *prometheus.CounterVec
	// ExtractJobsTotal tracks receipt extraction job outcomes.
	ExtractJobsTotal *prometheus.CounterVec
	// ExtractJobLatency records extraction provider latency in milliseconds.
	ExtractJobLatency prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementComputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_compute_total",
			Help:      "Count of settlement computations by outcome.",
		}, []string{"result", "source"})
		SettlementComputeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_compute_duration_ms",
			Help:      "Settlement computation latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		})
		ClaimWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_writes_total",
			Help:      "Count of claim upserts and deletes by outcome.",
		}, []string{"op", "result"})
		RoomJoinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_joins_total",
			Help:      "Count of room join attempts by outcome.",
		}, []string{"result"})
		ExtractJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_jobs_total",
			Help:      "Count of receipt extraction job outcomes.",
		}, []string{"provider", "result"})
		ExtractJobLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_job_duration_ms",
			Help:      "Receipt extraction provider latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		})

		mustRegisterCollector(reg, SettlementComputeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SettlementComputeTotal = v
			}
		})
		mustRegisterCollector(reg, SettlementComputeLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SettlementComputeLatency = v
			}
		})
		mustRegisterCollector(reg, ClaimWritesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ClaimWritesTotal = v
			}
		})
		mustRegisterCollector(reg, RoomJoinsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RoomJoinsTotal = v
			}
		})
		mustRegisterCollector(reg, ExtractJobsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ExtractJobsTotal = v
			}
		})
		mustRegisterCollector(reg, ExtractJobLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ExtractJobLatency = v
			}
		})
	})
}

// IncRoomJoin records a room join attempt. Safe to call before metrics
// registration, which tests skip.
func IncRoomJoin(result string) {
	if RoomJoinsTotal != nil {
		RoomJoinsTotal.WithLabelValues(result).Inc()
	}
}

// IncClaimWrite records a claim write outcome.
func IncClaimWrite(op, result string) {
	if ClaimWritesTotal != nil {
		ClaimWritesTotal.WithLabelValues(op, result).Inc()
	}
}

// ObserveSettlementCompute records one settlement computation.
func ObserveSettlementCompute(result, source string, durationMS float64) {
	if SettlementComputeTotal != nil {
		SettlementComputeTotal.WithLabelValues(result, source).Inc()
	}
	if SettlementComputeLatency != nil {
		SettlementComputeLatency.Observe(durationMS)
	}
}

// ObserveExtractJob records one extraction job outcome with its latency.
func ObserveExtractJob(provider, result string, durationMS float64) {
	if ExtractJobsTotal != nil {
		ExtractJobsTotal.WithLabelValues(provider, result).Inc()
	}
	if ExtractJobLatency != nil {
		ExtractJobLatency.Observe(durationMS)
	}
}

func mustRegisterCollector(reg prometheus.Registerer, c prometheus.Collector, replace func(prometheus.Collector)) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			replace(are.ExistingCollector)
			return
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
}
