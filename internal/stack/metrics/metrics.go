// Package metrics exports pass and transfer outcomes as Prometheus series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"quickstack.ai/internal/stack/model"
)

const namespace = "quickstack"

// Recorder implements record.Recorder on a caller-owned registry.
type Recorder struct {
	passes      prometheus.Counter
	issued      *prometheus.CounterVec
	skipped     prometheus.Counter
	resolved    *prometheus.CounterVec
	units       *prometheus.CounterVec
	outstanding prometheus.Gauge
	latency     prometheus.Histogram
	radius      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "passes_total",
			Help: "Quick-stack passes completed.",
		}),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transfers_issued_total",
			Help: "Deposits issued, by item kind.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transfers_skipped_total",
			Help: "Allocation decisions that did not produce a deposit.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transfers_resolved_total",
			Help: "Reconciled transfers by terminal state and recovery target.",
		}, []string{"state", "recovered_to"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "units_total",
			Help: "Item units by outcome (accepted, recovered, lost).",
		}, []string{"outcome"}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "transfers_outstanding",
			Help: "Issued transfers awaiting verification.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "verification_seconds",
			Help:    "Time from issue to reconciliation.",
			Buckets: []float64{0.5, 1, 2, 3, 5, 10, 30},
		}),
		radius: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "search_radius",
			Help: "Search radius used by the most recent pass.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.passes, r.issued, r.skipped, r.resolved, r.units, r.outstanding, r.latency, r.radius)
	}
	return r
}

func (r *Recorder) PassCompleted(s model.PassSummary) {
	r.passes.Inc()
	r.skipped.Add(float64(s.Skipped))
	r.radius.Set(s.Radius)
}

func (r *Recorder) TransferIssued(p model.PendingTransfer) {
	r.issued.WithLabelValues(p.Key.Kind).Inc()
	r.outstanding.Inc()
}

func (r *Recorder) TransferResolved(res model.Resolution) {
	r.outstanding.Dec()
	r.resolved.WithLabelValues(string(res.State), string(res.RecoveredTo)).Inc()
	if res.Accepted > 0 {
		r.units.WithLabelValues("accepted").Add(float64(res.Accepted))
	}
	if res.Shortfall > 0 {
		outcome := "recovered"
		if res.RecoveredTo == model.RecoveredLost {
			outcome = "lost"
		}
		r.units.WithLabelValues(outcome).Add(float64(res.Shortfall))
	}
	if !res.Transfer.IssuedAt.IsZero() && res.ResolvedAt.After(res.Transfer.IssuedAt) {
		r.latency.Observe(res.ResolvedAt.Sub(res.Transfer.IssuedAt).Seconds())
	}
}
