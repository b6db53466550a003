package metrics

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-gateway/internal/types"
)

func newTestTracker(rates map[types.ProviderTag]CostRates, warningPct float64) (*Tracker, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewTracker(rates, warningPct, logrus.NewEntry(logger), nil), hook
}

func TestTracker_Counters(t *testing.T) {
	tr, _ := newTestTracker(map[types.ProviderTag]CostRates{
		types.ProviderYahoo: {},
	}, 80)

	tr.RecordSuccess(types.ProviderYahoo)
	tr.RecordSuccess(types.ProviderYahoo)
	tr.RecordFailure(types.ProviderYahoo)

	m := tr.Metrics(types.ProviderYahoo)
	assert.Equal(t, int64(3), m.Total)
	assert.Equal(t, int64(2), m.Success)
	assert.Equal(t, int64(1), m.Failed)

	assert.Zero(t, tr.Metrics(types.ProviderMock), "unknown variants read zero")
}

func TestTracker_CostMath(t *testing.T) {
	tr, _ := newTestTracker(map[types.ProviderTag]CostRates{
		types.ProviderAlphaVantage: {CostPerCall: 0.5, MonthlySubscription: 10, Threshold: 100},
	}, 80)

	for i := 0; i < 20; i++ {
		tr.RecordSuccess(types.ProviderAlphaVantage)
	}
	// Failures still incur cost.
	for i := 0; i < 10; i++ {
		tr.RecordFailure(types.ProviderAlphaVantage)
	}

	cost := tr.CostMetrics(types.ProviderAlphaVantage)
	assert.Equal(t, int64(30), cost.TotalCalls)
	assert.InDelta(t, 15.0, cost.EstimatedUsageCost, 1e-9)
	assert.InDelta(t, 25.0, cost.TotalEstimatedCost, 1e-9)
	assert.InDelta(t, 25.0, cost.ThresholdPct, 1e-9)
	assert.False(t, cost.Exceeded)
}

func TestTracker_ThresholdPctZeroWhenUnset(t *testing.T) {
	tr, _ := newTestTracker(map[types.ProviderTag]CostRates{
		types.ProviderYahoo: {CostPerCall: 1},
	}, 80)

	tr.RecordSuccess(types.ProviderYahoo)

	cost := tr.CostMetrics(types.ProviderYahoo)
	assert.Zero(t, cost.ThresholdPct)
	assert.False(t, cost.Exceeded)
}

func TestTracker_WarnsOncePerCrossing(t *testing.T) {
	// Each call costs 10 against a threshold of 100; warning at 80%.
	tr, hook := newTestTracker(map[types.ProviderTag]CostRates{
		types.ProviderAlphaVantage: {CostPerCall: 10, Threshold: 100},
	}, 80)

	for i := 0; i < 12; i++ {
		tr.RecordSuccess(types.ProviderAlphaVantage)
	}

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings, "one warning per crossing, not per call")
	assert.True(t, tr.Exceeded(types.ProviderAlphaVantage))
}

func TestTracker_IsFree(t *testing.T) {
	tr, _ := newTestTracker(map[types.ProviderTag]CostRates{
		types.ProviderYahoo:        {},
		types.ProviderAlphaVantage: {CostPerCall: 0.001, MonthlySubscription: 49.99},
	}, 80)

	assert.True(t, tr.IsFree(types.ProviderYahoo))
	assert.False(t, tr.IsFree(types.ProviderAlphaVantage))
}

func TestTracker_ConcurrentRecording(t *testing.T) {
	tr, _ := newTestTracker(map[types.ProviderTag]CostRates{
		types.ProviderYahoo: {},
	}, 80)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				tr.RecordSuccess(types.ProviderYahoo)
			} else {
				tr.RecordFailure(types.ProviderYahoo)
			}
		}(i)
	}
	wg.Wait()

	m := tr.Metrics(types.ProviderYahoo)
	require.Equal(t, int64(100), m.Total)
	assert.Equal(t, int64(50), m.Success)
	assert.Equal(t, int64(50), m.Failed)
}
