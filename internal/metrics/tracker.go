package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"market-data-gateway/internal/models"
	"market-data-gateway/internal/types"
)

// CostRates is the pricing model applied to one variant's call volume.
type CostRates struct {
	CostPerCall         float64
	MonthlySubscription float64
	Threshold           float64
}

// CallMetrics are the raw call counters for one variant.
type CallMetrics struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
}

// variantCounters hold one variant's counters. All fields are touched with
// atomics only; failed calls still incur cost.
type variantCounters struct {
	total   int64
	success int64
	failed  int64

	rates  CostRates
	warned int32
}

// Tracker counts upstream calls per variant and derives cost estimates. The
// threshold-exceeded state is a read-only flag: strategies read it and
// decide, the tracker enforces nothing.
type Tracker struct {
	variants   map[types.ProviderTag]*variantCounters
	warningPct float64
	log        *logrus.Entry
	registry   *prometheus.Registry

	callsTotal *prometheus.CounterVec
	costGauge  *prometheus.GaugeVec
}

// NewTracker creates a tracker for the given variants. registry may be nil;
// a private one is created so repeated construction never double-registers.
func NewTracker(rates map[types.ProviderTag]CostRates, warningPct float64, log *logrus.Entry, registry *prometheus.Registry) *Tracker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if warningPct <= 0 {
		warningPct = 80
	}

	factory := promauto.With(registry)
	t := &Tracker{
		variants:   make(map[types.ProviderTag]*variantCounters, len(rates)),
		warningPct: warningPct,
		log:        log,
		registry:   registry,
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_data_provider_calls_total",
			Help: "Total upstream provider calls by variant and outcome",
		}, []string{"provider", "outcome"}),
		costGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "market_data_provider_estimated_cost",
			Help: "Estimated total cost per provider variant",
		}, []string{"provider"}),
	}

	for tag, r := range rates {
		t.variants[tag] = &variantCounters{rates: r}
	}
	return t
}

// Registry exposes the prometheus registry backing the tracker's collectors.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

func (t *Tracker) counters(tag types.ProviderTag) *variantCounters {
	if vc, ok := t.variants[tag]; ok {
		return vc
	}
	return nil
}

// RecordSuccess counts one successful upstream call.
func (t *Tracker) RecordSuccess(tag types.ProviderTag) {
	t.record(tag, "success", func(vc *variantCounters) {
		atomic.AddInt64(&vc.success, 1)
	})
}

// RecordFailure counts one failed upstream call. The call still incurs cost.
func (t *Tracker) RecordFailure(tag types.ProviderTag) {
	t.record(tag, "failure", func(vc *variantCounters) {
		atomic.AddInt64(&vc.failed, 1)
	})
}

func (t *Tracker) record(tag types.ProviderTag, outcome string, bump func(*variantCounters)) {
	vc := t.counters(tag)
	if vc == nil {
		return
	}

	atomic.AddInt64(&vc.total, 1)
	bump(vc)
	t.callsTotal.WithLabelValues(string(tag), outcome).Inc()

	cost := t.costFor(tag, vc)
	t.costGauge.WithLabelValues(string(tag)).Set(cost.TotalEstimatedCost)
	t.maybeWarn(tag, vc, cost)
}

// maybeWarn emits one warning per crossing of the warning threshold, not one
// per call. Dropping back below re-arms the warning.
func (t *Tracker) maybeWarn(tag types.ProviderTag, vc *variantCounters, cost models.CostMetrics) {
	if cost.Threshold <= 0 {
		return
	}

	if cost.ThresholdPct >= t.warningPct {
		if atomic.CompareAndSwapInt32(&vc.warned, 0, 1) {
			t.log.WithFields(logrus.Fields{
				"provider":      tag,
				"threshold_pct": cost.ThresholdPct,
				"total_cost":    cost.TotalEstimatedCost,
				"threshold":     cost.Threshold,
			}).Warn("provider cost approaching threshold")
		}
		return
	}
	atomic.StoreInt32(&vc.warned, 0)
}

// Metrics returns the raw counters for one variant.
func (t *Tracker) Metrics(tag types.ProviderTag) CallMetrics {
	vc := t.counters(tag)
	if vc == nil {
		return CallMetrics{}
	}
	return CallMetrics{
		Total:   atomic.LoadInt64(&vc.total),
		Success: atomic.LoadInt64(&vc.success),
		Failed:  atomic.LoadInt64(&vc.failed),
	}
}

// CostMetrics derives the cost read-out for one variant:
// usage = calls · costPerCall, total = usage + subscription, and
// thresholdPct = 100 · total / threshold (zero when unset).
func (t *Tracker) CostMetrics(tag types.ProviderTag) models.CostMetrics {
	vc := t.counters(tag)
	if vc == nil {
		return models.CostMetrics{}
	}
	return t.costFor(tag, vc)
}

func (t *Tracker) costFor(_ types.ProviderTag, vc *variantCounters) models.CostMetrics {
	calls := atomic.LoadInt64(&vc.total)
	usage := float64(calls) * vc.rates.CostPerCall
	total := usage + vc.rates.MonthlySubscription

	cost := models.CostMetrics{
		TotalCalls:              calls,
		EstimatedUsageCost:      usage,
		MonthlySubscriptionCost: vc.rates.MonthlySubscription,
		TotalEstimatedCost:      total,
		Threshold:               vc.rates.Threshold,
	}
	if vc.rates.Threshold > 0 {
		cost.ThresholdPct = 100 * total / vc.rates.Threshold
		cost.Exceeded = total >= vc.rates.Threshold
	}
	return cost
}

// AllCostMetrics snapshots every variant's cost read-out.
func (t *Tracker) AllCostMetrics() map[types.ProviderTag]models.CostMetrics {
	all := make(map[types.ProviderTag]models.CostMetrics, len(t.variants))
	for tag := range t.variants {
		all[tag] = t.CostMetrics(tag)
	}
	return all
}

// IsFree reports whether a variant's pricing model carries no per-call or
// subscription cost.
func (t *Tracker) IsFree(tag types.ProviderTag) bool {
	vc := t.counters(tag)
	if vc == nil {
		return true
	}
	return vc.rates.CostPerCall == 0 && vc.rates.MonthlySubscription == 0
}

// Exceeded reports whether a variant's estimated cost has crossed its
// threshold.
func (t *Tracker) Exceeded(tag types.ProviderTag) bool {
	return t.CostMetrics(tag).Exceeded
}
