package sharing

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	claimStatusPaid           = "paid"
	claimStatusNoop           = "noop"
	claimStatusTransferFailed = "transfer_failed"
	claimStatusError          = "error"
)

type Metrics struct {
	ClaimsTotal       *prometheus.CounterVec
	PayoutAmount      prometheus.Counter
	ClaimDuration     prometheus.Histogram
	PublishFailures   prometheus.Counter
	CumulativeRevenue prometheus.Gauge
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revshare_claims_total",
				Help: "Total dividend claims by outcome.",
			},
			[]string{"status"},
		),
		PayoutAmount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "revshare_payout_amount_total",
				Help: "Total minor units paid out to shareholders.",
			},
		),
		ClaimDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "revshare_claim_duration_seconds",
				Help:    "Claim processing duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		PublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "revshare_publish_failures_total",
				Help: "Payout notifications that could not be published.",
			},
		),
		CumulativeRevenue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "revshare_cumulative_revenue",
				Help: "Last observed cumulative revenue of the pool.",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(m.ClaimsTotal, m.PayoutAmount, m.ClaimDuration, m.PublishFailures, m.CumulativeRevenue)
	}
	return m
}
