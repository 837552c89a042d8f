// Package metrics exposes faucetd's Prometheus instrumentation: share
// acceptance/rejection counts, block-close timing, reward totals paid per
// block, payout dispatch outcomes, and rate-limit rejections. It is an
// operator-facing surface (mounted at /metrics alongside /health and
// /payouts), never consumed by the browser miner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector faucetd registers. Held as a struct
// rather than package-level globals so tests can construct an isolated
// registry per test.
type Metrics struct {
	Registry *prometheus.Registry

	SharesAccepted   prometheus.Counter
	SharesRejected   *prometheus.CounterVec // label: reason
	BlockCloseDur    prometheus.Histogram
	BlockNumber      prometheus.Gauge
	PoolPaidMicro    *prometheus.CounterVec // label: pool; the engine records only "block_total", pools are not broken out
	PayoutOutcomes   *prometheus.CounterVec // label: outcome (sent|failed)
	RateLimitRejects *prometheus.CounterVec // label: limiter (general|submit)
}

// New constructs a fresh Metrics bundle registered against its own
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		SharesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faucetd",
			Name:      "shares_accepted_total",
			Help:      "Total number of shares accepted into the current or a past block.",
		}),
		SharesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faucetd",
			Name:      "shares_rejected_total",
			Help:      "Total number of shares rejected, labeled by reason.",
		}, []string{"reason"}),
		BlockCloseDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "faucetd",
			Name:      "block_close_duration_seconds",
			Help:      "Time spent finalizing a block (grouping shares, computing rewards, committing).",
			Buckets:   prometheus.DefBuckets,
		}),
		BlockNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faucetd",
			Name:      "current_block_number",
			Help:      "The block number currently open for shares.",
		}),
		PoolPaidMicro: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faucetd",
			Name:      "pool_paid_micro_total",
			Help:      "Total micro-tokens awarded at block finalization, all pools combined under pool=\"block_total\".",
		}, []string{"pool"}),
		PayoutOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faucetd",
			Name:      "payout_outcomes_total",
			Help:      "Payout dispatch outcomes, labeled by outcome.",
		}, []string{"outcome"}),
		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faucetd",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by a rate limiter, labeled by limiter name.",
		}, []string{"limiter"}),
	}

	reg.MustRegister(
		m.SharesAccepted,
		m.SharesRejected,
		m.BlockCloseDur,
		m.BlockNumber,
		m.PoolPaidMicro,
		m.PayoutOutcomes,
		m.RateLimitRejects,
	)
	return m
}
